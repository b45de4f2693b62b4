package directory

import (
	"errors"
	"strings"
)

func (s *Service) validate(w Warehouse) error {
	if !w.Role.Valid() {
		return errors.New("directory: warehouse role is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return errors.New("directory: warehouse name is required")
	}
	if strings.TrimSpace(w.AccountID) == "" {
		return errors.New("directory: account id is required")
	}
	if w.Role == RoleIndividual && strings.TrimSpace(w.TechnicianID) == "" {
		return errors.New("directory: individual warehouse requires a technician")
	}
	return nil
}
