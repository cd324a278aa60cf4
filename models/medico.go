package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// LoadDateLayout is the ISO date format of fecha_carga.
const LoadDateLayout = "2006-01-02"

type Medico struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	LoadDate       string `gorm:"column:fecha_carga;not null" json:"fecha_carga"`
	Specialty      string `gorm:"column:especialidad;not null" json:"especialidad"`
	FirstName      string `gorm:"column:nombre_medico;not null" json:"nombre_medico"`
	LastName       string `gorm:"column:apellido_medico;not null" json:"apellido_medico"`
	Category       string `gorm:"column:categoria" json:"categoria"`
	InsurancePlans string `gorm:"column:obra_social" json:"obra_social"`
	AttendanceDays Days   `gorm:"column:dias_atencion;type:text" json:"dias_atencion"`

	// Case-folded identity, compared and indexed instead of the display columns.
	FirstNameKey string `gorm:"column:nombre_clave;not null;default:''" json:"-"`
	LastNameKey  string `gorm:"column:apellido_clave;not null;default:''" json:"-"`
	SpecialtyKey string `gorm:"column:especialidad_clave;not null;default:''" json:"-"`
}

func (Medico) TableName() string {
	return "medicos"
}

// Normalize trims every text field and lowercases the specialty, the form
// in which a record is stored.
func (m *Medico) Normalize() {
	m.LoadDate = strings.TrimSpace(m.LoadDate)
	m.Specialty = strings.ToLower(strings.TrimSpace(m.Specialty))
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	m.Category = strings.TrimSpace(m.Category)
	m.InsurancePlans = strings.TrimSpace(m.InsurancePlans)
	m.fillKeys()
}

func (m *Medico) fillKeys() {
	m.FirstNameKey = foldKey(m.FirstName)
	m.LastNameKey = foldKey(m.LastName)
	m.SpecialtyKey = foldKey(m.Specialty)
}

// BeforeCreate keeps the key columns in step with the display columns for
// every insert, including ones that skip Normalize.
func (m *Medico) BeforeCreate(*gorm.DB) error {
	m.fillKeys()
	return nil
}

// foldKey is the Unicode-aware case fold used for identity comparison.
// SQLite's LOWER() only folds ASCII, so folding happens here.
func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate reports missing required fields and a malformed load date.
func (m *Medico) Validate() error {
	var missing []string
	if strings.TrimSpace(m.LoadDate) == "" {
		missing = append(missing, "fecha_carga")
	}
	if strings.TrimSpace(m.Specialty) == "" {
		missing = append(missing, "especialidad")
	}
	if strings.TrimSpace(m.FirstName) == "" {
		missing = append(missing, "nombre_medico")
	}
	if strings.TrimSpace(m.LastName) == "" {
		missing = append(missing, "apellido_medico")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	if _, err := time.Parse(LoadDateLayout, strings.TrimSpace(m.LoadDate)); err != nil {
		return fmt.Errorf("%w: fecha_carga must be YYYY-MM-DD, got %q", ErrValidation, m.LoadDate)
	}
	return nil
}

// Days is the ordered list of attendance weekdays, persisted as JSON array text.
type Days []string

func (d Days) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(d))
	if err != nil {
		return nil, fmt.Errorf("failed to encode dias_atencion: %w", err)
	}
	return string(b), nil
}

// Scan decodes the stored JSON. NULL and empty text decode to an empty list;
// anything that is not a JSON array of strings is an error.
func (d *Days) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Days{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("%w: unsupported dias_atencion type %T", ErrStorage, src)
	}

	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		*d = Days{}
		return nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: malformed dias_atencion %q: %v", ErrStorage, string(raw), err)
	}
	if out == nil {
		out = []string{}
	}
	*d = out
	return nil
}

// IdentityKey selects records by the case-insensitive identity triple.
// Specialty may be empty where an operation allows keying on names only.
type IdentityKey struct {
	FirstName string
	LastName  string
	Specialty string
}

func (k IdentityKey) trimmed() IdentityKey {
	return IdentityKey{
		FirstName: strings.TrimSpace(k.FirstName),
		LastName:  strings.TrimSpace(k.LastName),
		Specialty: strings.TrimSpace(k.Specialty),
	}
}

func (k IdentityKey) folded() IdentityKey {
	return IdentityKey{
		FirstName: foldKey(k.FirstName),
		LastName:  foldKey(k.LastName),
		Specialty: foldKey(k.Specialty),
	}
}

func (k IdentityKey) String() string {
	if k.Specialty == "" {
		return fmt.Sprintf("%s %s", k.FirstName, k.LastName)
	}
	return fmt.Sprintf("%s %s (%s)", k.FirstName, k.LastName, k.Specialty)
}

// UpdateFields carries the mutable columns of a partial update. Empty values
// are treated as not supplied.
type UpdateFields struct {
	AttendanceDays Days
	InsurancePlans string
	Category       string
}

// columns returns the supplied column/value pairs.
func (f UpdateFields) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if len(f.AttendanceDays) > 0 {
		cols["dias_atencion"] = f.AttendanceDays
	}
	if v := strings.TrimSpace(f.InsurancePlans); v != "" {
		cols["obra_social"] = v
	}
	if v := strings.TrimSpace(f.Category); v != "" {
		cols["categoria"] = v
	}
	return cols
}
