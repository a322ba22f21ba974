package services

import (
	"sort"
	"strings"

	"tiendatec/internal/models"

	"github.com/shopspring/decimal"
)

// FieldSet is a set of JSON field names.
type FieldSet map[string]bool

// NewFieldSet builds a FieldSet from names.
func NewFieldSet(names ...string) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// Has reports whether name is in the set.
func (s FieldSet) Has(name string) bool {
	return s[name]
}

// Intersect returns the names present in both sets.
func (s FieldSet) Intersect(other FieldSet) FieldSet {
	out := FieldSet{}
	for n := range s {
		if other[n] {
			out[n] = true
		}
	}
	return out
}

// Without returns s minus names.
func (s FieldSet) Without(names ...string) FieldSet {
	out := FieldSet{}
	for n := range s {
		out[n] = true
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}

// Names returns the set as a sorted slice.
func (s FieldSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// productAdminOnlyFields are dropped silently from non-admin writes.
var productAdminOnlyFields = []string{"es_nuevo", "es_mas_vendido", "creado_por"}

// ProductInput is a create or update request for a product. Nil fields were not sent.
type ProductInput struct {
	Nombre          *string          `json:"nombre" validate:"omitempty,max=200"`
	Descripcion     *string          `json:"descripcion"`
	Precio          *decimal.Decimal `json:"precio"`
	Categoria       *string          `json:"categoria"`
	Tipo            *string          `json:"tipo"`
	Imagen          *string          `json:"imagen" validate:"omitempty,max=500"`
	Stock           *int             `json:"stock"`
	CantidadVendida *int             `json:"cantidad_vendida"`
	EsNuevo         *bool            `json:"es_nuevo"`
	EsMasVendido    *bool            `json:"es_mas_vendido"`
	CreadoPor       *string          `json:"creado_por"`
}

// Requested returns the fields present in the request.
func (in ProductInput) Requested() FieldSet {
	s := FieldSet{}
	set := func(name string, present bool) {
		if present {
			s[name] = true
		}
	}
	set("nombre", in.Nombre != nil)
	set("descripcion", in.Descripcion != nil)
	set("precio", in.Precio != nil)
	set("categoria", in.Categoria != nil)
	set("tipo", in.Tipo != nil)
	set("imagen", in.Imagen != nil)
	set("stock", in.Stock != nil)
	set("cantidad_vendida", in.CantidadVendida != nil)
	set("es_nuevo", in.EsNuevo != nil)
	set("es_mas_vendido", in.EsMasVendido != nil)
	set("creado_por", in.CreadoPor != nil)
	return s
}

// EffectiveProductWriteSet is the subset of requested product fields the
// caller may write. Admin-only fields are removed for everyone else without
// an error.
func EffectiveProductWriteSet(role models.Role, requested FieldSet) FieldSet {
	if role == models.RoleAdmin {
		return requested.Without()
	}
	return requested.Without(productAdminOnlyFields...)
}

// ApplyProductFields copies the allowed fields of in onto p and returns the
// names of the fields whose value changed. es_mas_vendido is derived from
// cantidad_vendida and never stored, so it is accepted but has no effect.
func ApplyProductFields(p *models.Product, in ProductInput, allowed FieldSet) []string {
	var changed []string
	if allowed.Has("nombre") && *in.Nombre != p.Nombre {
		p.Nombre = *in.Nombre
		changed = append(changed, "nombre")
	}
	if allowed.Has("descripcion") && *in.Descripcion != p.Descripcion {
		p.Descripcion = *in.Descripcion
		changed = append(changed, "descripcion")
	}
	if allowed.Has("precio") && !in.Precio.Equal(p.Precio) {
		p.Precio = *in.Precio
		changed = append(changed, "precio")
	}
	if allowed.Has("categoria") && *in.Categoria != p.CategoriaID {
		p.CategoriaID = *in.Categoria
		p.Categoria = nil
		changed = append(changed, "categoria")
	}
	if allowed.Has("tipo") && models.ProductType(*in.Tipo) != p.Tipo {
		p.Tipo = models.ProductType(*in.Tipo)
		changed = append(changed, "tipo")
	}
	if allowed.Has("imagen") && *in.Imagen != p.Imagen {
		p.Imagen = *in.Imagen
		changed = append(changed, "imagen")
	}
	if allowed.Has("stock") && *in.Stock != p.Stock {
		p.Stock = *in.Stock
		changed = append(changed, "stock")
	}
	if allowed.Has("cantidad_vendida") && *in.CantidadVendida != p.CantidadVendida {
		p.CantidadVendida = *in.CantidadVendida
		changed = append(changed, "cantidad_vendida")
	}
	if allowed.Has("es_nuevo") && *in.EsNuevo != p.EsNuevo {
		// The save hook recomputes it from fecha_creacion.
		p.EsNuevo = *in.EsNuevo
		changed = append(changed, "es_nuevo")
	}
	if allowed.Has("creado_por") && (p.CreadoPorID == nil || *p.CreadoPorID != *in.CreadoPor) {
		creator := *in.CreadoPor
		p.CreadoPorID = &creator
		p.CreadoPor = nil
		changed = append(changed, "creado_por")
	}
	return changed
}

// UserInput is a create or update request for a user account. Nil fields were not sent.
type UserInput struct {
	Email                *string `json:"email" validate:"omitempty,email,max=255"`
	Nombre               *string `json:"nombre" validate:"omitempty,max=45"`
	Apellido             *string `json:"apellido" validate:"omitempty,max=50"`
	Roles                *string `json:"roles"`
	IsActive             *bool   `json:"is_active"`
	IsStaff              *bool   `json:"is_staff"`
	Password             *string `json:"password"`
	PasswordConfirmacion *string `json:"password_confirmacion"`
}

// Requested returns the profile fields present in the request. Passwords are
// handled by their own operations and never appear here.
func (in UserInput) Requested() FieldSet {
	s := FieldSet{}
	set := func(name string, present bool) {
		if present {
			s[name] = true
		}
	}
	set("email", in.Email != nil)
	set("nombre", in.Nombre != nil)
	set("apellido", in.Apellido != nil)
	set("roles", in.Roles != nil)
	set("is_active", in.IsActive != nil)
	set("is_staff", in.IsStaff != nil)
	return s
}

var (
	adminUserFields = NewFieldSet("email", "nombre", "apellido", "roles", "is_active", "is_staff")
	selfUserFields  = NewFieldSet("nombre", "apellido")
)

// EffectiveUserWriteSet is the subset of requested user fields the caller
// may write. Admins manage accounts; everyone else edits only their name.
func EffectiveUserWriteSet(caller *models.User, requested FieldSet) FieldSet {
	if caller.IsAdmin() {
		return requested.Intersect(adminUserFields)
	}
	return requested.Intersect(selfUserFields)
}

// ApplyUserFields copies the allowed fields of in onto u and returns the
// names of the fields whose value changed.
func ApplyUserFields(u *models.User, in UserInput, allowed FieldSet) []string {
	var changed []string
	if allowed.Has("email") {
		if email := models.NormalizeEmail(*in.Email); email != u.Email {
			u.Email = email
			changed = append(changed, "email")
		}
	}
	if allowed.Has("nombre") && strings.TrimSpace(*in.Nombre) != u.Nombre {
		u.Nombre = strings.TrimSpace(*in.Nombre)
		changed = append(changed, "nombre")
	}
	if allowed.Has("apellido") && strings.TrimSpace(*in.Apellido) != u.Apellido {
		u.Apellido = strings.TrimSpace(*in.Apellido)
		changed = append(changed, "apellido")
	}
	if allowed.Has("roles") && models.Role(*in.Roles) != u.Roles {
		u.Roles = models.Role(*in.Roles)
		changed = append(changed, "roles")
	}
	if allowed.Has("is_active") && *in.IsActive != u.IsActive {
		u.IsActive = *in.IsActive
		changed = append(changed, "is_active")
	}
	if allowed.Has("is_staff") && *in.IsStaff != u.IsStaff {
		u.IsStaff = *in.IsStaff
		changed = append(changed, "is_staff")
	}
	return changed
}
