package httpx

import (
	"html/template"
	"time"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
)

// Layouts of the date inputs on the installation forms.
const (
	dateTimeInputLayout = "2006-01-02T15:04"
	dateInputLayout     = "2006-01-02"
	displayLayout       = "02/01/2006 15:04"
)

const unscheduledLabel = "Sin programar"

func pageFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"statusLabel": func(s model.InstallationStatus) string { return s.Label() },
		"statusClass": func(s model.InstallationStatus) string { return "status-" + string(s) },
		"roleLabel":   roleLabel,
		"friendlyDate": func(v any) string {
			t, ok := timeValue(v)
			if !ok {
				return unscheduledLabel
			}
			return t.In(loc).Format(displayLayout)
		},
		"dateTimeInput": func(v any) string {
			t, ok := timeValue(v)
			if !ok {
				return ""
			}
			return t.In(loc).Format(dateTimeInputLayout)
		},
		"deref": func(p *string) string {
			if p == nil {
				return ""
			}
			return *p
		},
		"isAdmin": func(r domainauth.Role) bool { return r == domainauth.RoleAdmin },
	}
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	default:
		return time.Time{}, false
	}
}

func roleLabel(role domainauth.Role) string {
	switch role {
	case domainauth.RoleAdmin:
		return "Administrador"
	case domainauth.RoleInstaller:
		return "Instalador"
	default:
		return string(role)
	}
}
