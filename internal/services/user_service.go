package services

import (
	"errors"
	"fmt"
	"strings"

	"tiendatec/internal/models"
	"tiendatec/internal/repositories"

	log "github.com/sirupsen/logrus"
)

// ChangePasswordInput is a request to replace the caller's password.
type ChangePasswordInput struct {
	PasswordActual            string `json:"password_actual" validate:"required"`
	PasswordNuevo             string `json:"password_nuevo" validate:"required"`
	PasswordNuevoConfirmacion string `json:"password_nuevo_confirmacion" validate:"required"`
}

// UserService handles account management.
type UserService struct {
	repo repositories.UserRepository
	auth *AuthService
}

// NewUserService creates a new UserService. auth supplies email checks shared with registration.
func NewUserService(repo repositories.UserRepository, auth *AuthService) *UserService {
	return &UserService{repo: repo, auth: auth}
}

// List returns the users visible to caller: everyone for admins, only
// themselves otherwise.
func (s *UserService) List(caller *models.User, filter repositories.UserFilter, page repositories.Page) ([]models.User, int64, error) {
	if !caller.IsAdmin() {
		filter = repositories.UserFilter{OnlyID: caller.ID}
	}
	return s.repo.List(filter, page)
}

// Get returns a user visible to caller. Other accounts are reported as not
// found to non-admins.
func (s *UserService) Get(caller *models.User, id string) (*models.User, error) {
	if !caller.IsAdmin() && caller.ID != id {
		return nil, fmt.Errorf("user with ID %s: %w", id, repositories.ErrNotFound)
	}
	return s.repo.GetByID(id)
}

// Create adds an account with any role. Only admins reach it.
func (s *UserService) Create(in UserInput) (*models.User, error) {
	verr := NewValidationError()
	requireField(verr, "email", in.Email)
	requireField(verr, "nombre", in.Nombre)
	requireField(verr, "apellido", in.Apellido)
	requireField(verr, "password", in.Password)
	if verr.Has() {
		return nil, verr
	}

	role := models.RoleClient
	if in.Roles != nil && *in.Roles != "" {
		role = models.Role(*in.Roles)
		if !role.Valid() {
			verr.Add("roles", fmt.Sprintf("%q is not a valid choice.", *in.Roles))
		}
	}
	email := models.NormalizeEmail(*in.Email)
	if err := s.auth.checkEmailFree(email, "", verr); err != nil {
		return nil, err
	}
	for _, problem := range CheckPasswordPolicy(*in.Password) {
		verr.Add("password", problem)
	}
	if in.PasswordConfirmacion != nil && *in.PasswordConfirmacion != *in.Password {
		verr.Add("password_confirmacion", "Passwords do not match.")
	}
	if verr.Has() {
		return nil, verr
	}

	hashed, err := hashPassword(*in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:    email,
		Nombre:   strings.TrimSpace(*in.Nombre),
		Apellido: strings.TrimSpace(*in.Apellido),
		Roles:    role,
		Password: hashed,
		IsActive: true,
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.IsStaff != nil {
		user.IsStaff = *in.IsStaff
	}
	if err := s.repo.Create(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fieldError("email", "user with this email already exists.")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Update changes another account (admins) or the caller's own account. A
// full update (partial false) requires every field of the caller's write-set.
// It returns the user and the names of the fields that changed.
func (s *UserService) Update(caller *models.User, id string, in UserInput, partial bool) (*models.User, []string, error) {
	if !caller.IsAdmin() && caller.ID != id {
		return nil, nil, ErrForbidden
	}
	target, err := s.repo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	allowed := EffectiveUserWriteSet(caller, in.Requested())
	return s.apply(target, in, allowed, requiredFor(caller, partial))
}

// UpdateMe edits the caller's own name, whatever their role.
func (s *UserService) UpdateMe(caller *models.User, in UserInput, partial bool) (*models.User, []string, error) {
	target, err := s.repo.GetByID(caller.ID)
	if err != nil {
		return nil, nil, err
	}
	var required []string
	if !partial {
		required = selfUserFields.Names()
	}
	return s.apply(target, in, in.Requested().Intersect(selfUserFields), required)
}

func requiredFor(caller *models.User, partial bool) []string {
	if partial {
		return nil
	}
	if caller.IsAdmin() {
		return []string{"email", "nombre", "apellido"}
	}
	return selfUserFields.Names()
}

func (s *UserService) apply(target *models.User, in UserInput, allowed FieldSet, required []string) (*models.User, []string, error) {
	verr := NewValidationError()
	for _, name := range required {
		if !allowed.Has(name) {
			verr.Add(name, "This field is required.")
		}
	}
	if allowed.Has("nombre") && strings.TrimSpace(*in.Nombre) == "" {
		verr.Add("nombre", "This field may not be blank.")
	}
	if allowed.Has("apellido") && strings.TrimSpace(*in.Apellido) == "" {
		verr.Add("apellido", "This field may not be blank.")
	}
	if allowed.Has("roles") && !models.Role(*in.Roles).Valid() {
		verr.Add("roles", fmt.Sprintf("%q is not a valid choice.", *in.Roles))
	}
	if allowed.Has("email") {
		if err := s.auth.checkEmailFree(models.NormalizeEmail(*in.Email), target.ID, verr); err != nil {
			return nil, nil, err
		}
	}
	if verr.Has() {
		return nil, nil, verr
	}

	changed := ApplyUserFields(target, in, allowed)
	if len(changed) == 0 {
		return target, changed, nil
	}
	if err := s.repo.Update(target); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, nil, fieldError("email", "user with this email already exists.")
		}
		return nil, nil, err
	}
	return target, changed, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *UserService) ChangePassword(caller *models.User, in ChangePasswordInput) error {
	user, err := s.repo.GetByID(caller.ID)
	if err != nil {
		return err
	}

	verr := NewValidationError()
	if !checkPassword(user.Password, in.PasswordActual) {
		verr.Add("password_actual", "The current password is incorrect.")
	}
	for _, problem := range CheckPasswordPolicy(in.PasswordNuevo) {
		verr.Add("password_nuevo", problem)
	}
	if in.PasswordNuevo != in.PasswordNuevoConfirmacion {
		verr.Add("password_nuevo_confirmacion", "Passwords do not match.")
	}
	if verr.Has() {
		return verr
	}

	hashed, err := hashPassword(in.PasswordNuevo)
	if err != nil {
		return err
	}
	user.Password = hashed
	if err := s.repo.Update(user); err != nil {
		return err
	}
	log.WithField("user_id", user.ID).Info("password changed")
	return nil
}

// Deactivate disables an account instead of deleting it.
func (s *UserService) Deactivate(caller *models.User, id string) error {
	if !caller.IsAdmin() && caller.ID != id {
		return ErrForbidden
	}
	user, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}
	user.IsActive = false
	if err := s.repo.Update(user); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": user.ID, "by": caller.ID}).Info("user deactivated")
	return nil
}

// EnsureSuperuser creates the bootstrap administrator, or promotes the
// existing account with that email.
func (s *UserService) EnsureSuperuser(email, password string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	user, err := s.repo.GetByEmail(email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	if user != nil {
		if user.IsSuperuser && user.IsAdmin() && user.IsActive {
			return user, nil
		}
		user.Roles, user.IsStaff, user.IsSuperuser, user.IsActive = models.RoleAdmin, true, true, true
		if err := s.repo.Update(user); err != nil {
			return nil, err
		}
		log.WithField("email", email).Info("existing user promoted to superuser")
		return user, nil
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user = &models.User{
		Email:       email,
		Nombre:      "Admin",
		Apellido:    "Tienda",
		Roles:       models.RoleAdmin,
		Password:    hashed,
		IsActive:    true,
		IsStaff:     true,
		IsSuperuser: true,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create superuser: %w", err)
	}
	log.WithField("email", email).Info("superuser created")
	return user, nil
}

// Count returns the number of accounts.
func (s *UserService) Count() (int64, error) {
	return s.repo.Count()
}

func requireField(verr *ValidationError, name string, value *string) {
	if value == nil || strings.TrimSpace(*value) == "" {
		verr.Add(name, "This field is required.")
	}
}
