package provisioning

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator normalizes and checks raw provisioning payloads. It performs no I/O.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the module catalog registered as the
// `module` tag.
func NewValidator() *Validator {
	v := validator.New()
	if err := v.RegisterValidation("module", func(fl validator.FieldLevel) bool {
		return Module(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return &Validator{validate: v}
}

type requestForm struct {
	Email               string   `validate:"required,contains=@"`
	DisplayName         string   `validate:"min=3,max=80"`
	TemporaryCredential string   `validate:"min=8"`
	Modules             []string `validate:"min=1,dive,module"`
}

type roleUpdateForm struct {
	Email   string   `validate:"required,contains=@"`
	Role    string   `validate:"oneof=admin staff"`
	Modules []string `validate:"omitempty,dive,module"`
}

// RoleUpdateInput is the raw payload for changing a user's role.
type RoleUpdateInput struct {
	Email   string   `json:"email"`
	Role    string   `json:"role"`
	Active  *bool    `json:"active"`
	Modules []string `json:"modules"`
}

// RoleUpdate is a validated role change.
type RoleUpdate struct {
	Email   string
	Role    Role
	Active  bool
	Modules []Module
}

// Validate normalizes in and returns a Request, or a validation *Error
// describing every failed field.
func (v *Validator) Validate(in Input) (Request, error) {
	form := requestForm{
		Email:               NormalizeEmail(in.Email),
		DisplayName:         strings.TrimSpace(in.DisplayName),
		TemporaryCredential: in.TemporaryCredential,
		Modules:             normalizeModules(in.Modules),
	}
	if err := v.validate.Struct(form); err != nil {
		return Request{}, v.translate(err)
	}
	return Request{
		Email:               form.Email,
		DisplayName:         form.DisplayName,
		TemporaryCredential: form.TemporaryCredential,
		Modules:             toModules(form.Modules),
	}, nil
}

// ValidateRoleUpdate normalizes a role change. Missing modules default to the
// full catalog for admins and the dashboard for staff.
func (v *Validator) ValidateRoleUpdate(in RoleUpdateInput) (RoleUpdate, error) {
	form := roleUpdateForm{
		Email:   NormalizeEmail(in.Email),
		Role:    strings.ToLower(strings.TrimSpace(in.Role)),
		Modules: normalizeModules(in.Modules),
	}
	if form.Role == "" {
		form.Role = string(RoleStaff)
	}
	if err := v.validate.Struct(form); err != nil {
		return RoleUpdate{}, v.translate(err)
	}
	update := RoleUpdate{Email: form.Email, Role: Role(form.Role), Active: true, Modules: toModules(form.Modules)}
	if in.Active != nil {
		update.Active = *in.Active
	}
	if len(update.Modules) == 0 {
		update.Modules = defaultModules(update.Role)
	}
	return update, nil
}

func (v *Validator) translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return internalError(err)
	}
	fields := make(map[string]string)
	var invalid []string
	for _, fe := range verrs {
		switch {
		case fe.StructField() == "Email":
			fields["email"] = MsgInvalidEmail
		case fe.StructField() == "DisplayName":
			fields["displayName"] = MsgInvalidDisplayName
		case fe.StructField() == "TemporaryCredential":
			fields["temporaryPassword"] = MsgShortCredential
		case fe.StructField() == "Role":
			fields["role"] = MsgInvalidRole
		case fe.StructField() == "Modules":
			fields["modules"] = MsgNoModules
		case fe.Tag() == "module":
			if value, ok := fe.Value().(string); ok {
				invalid = append(invalid, value)
			}
		}
	}
	if len(invalid) > 0 {
		fields["modules"] = MsgInvalidModules
	}
	for _, key := range []string{"email", "role", "displayName", "temporaryPassword"} {
		if msg, ok := fields[key]; ok {
			return validationError(fields, invalid, msg)
		}
	}
	if len(invalid) > 0 {
		return validationError(fields, invalid, MsgInvalidModules, strings.Join(invalid, ", "))
	}
	return validationError(fields, nil, MsgNoModules)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// normalizeModules trims entries, drops empties and removes duplicates while
// keeping first-seen order.
func normalizeModules(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	return out
}

func toModules(raw []string) []Module {
	out := make([]Module, len(raw))
	for i, m := range raw {
		out[i] = Module(m)
	}
	return out
}

func defaultModules(role Role) []Module {
	if role == RoleAdmin {
		return Catalog()
	}
	return []Module{ModuleDashboard}
}
