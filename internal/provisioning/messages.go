package provisioning

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. English text doubles as the lookup key.
const (
	MsgInvalidEmail        = "Invalid email address."
	MsgInvalidDisplayName  = "Display name must be between 3 and 80 characters."
	MsgShortCredential     = "The temporary password must have at least 8 characters."
	MsgNoModules           = "At least one module must be assigned."
	MsgInvalidModules      = "Invalid modules: %s"
	MsgInvalidRole         = "Role must be admin or staff."
	MsgUnauthenticated     = "You must sign in to perform this action."
	MsgAdminRequired       = "Only an administrator can manage users."
	MsgInvalidBootstrapKey = "Invalid bootstrap key."
	MsgAdminExists         = "An administrator already exists. Use the regular user management flow."
	MsgBootstrapInFlight   = "Another initial administrator bootstrap is in progress."
	MsgEmailExists         = "A user with that email already exists."
	MsgUserNotFound        = "No user exists with that email."
	MsgInternal            = "The operation could not be completed."
)

var supportedLanguages = []language.Tag{language.English, language.Spanish}

var spanish = map[string]string{
	MsgInvalidEmail:        "Correo inválido.",
	MsgInvalidDisplayName:  "Nombre de usuario inválido.",
	MsgShortCredential:     "La contraseña temporal debe tener mínimo 8 caracteres.",
	MsgNoModules:           "Debes asignar al menos un módulo.",
	MsgInvalidModules:      "Módulos inválidos: %s",
	MsgInvalidRole:         "El rol solo puede ser admin o staff.",
	MsgUnauthenticated:     "Debes iniciar sesión para realizar esta acción.",
	MsgAdminRequired:       "Solo un administrador puede gestionar usuarios.",
	MsgInvalidBootstrapKey: "Bootstrap key inválida.",
	MsgAdminExists:         "Ya existe un administrador. Usa el flujo normal de gestión de usuarios.",
	MsgBootstrapInFlight:   "Ya hay un alta de administrador inicial en curso.",
	MsgEmailExists:         "Ya existe un usuario con ese correo.",
	MsgUserNotFound:        "No existe un usuario con ese correo.",
	MsgInternal:            "No se pudo completar la operación.",
}

var (
	messages = buildCatalog()
	matcher  = language.NewMatcher(supportedLanguages)
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range spanish {
		if err := b.SetString(language.Spanish, key, text); err != nil {
			panic(err)
		}
	}
	return b
}

// Localize renders the caller-facing message of err for an Accept-Language
// header value. Internal failures never expose their cause.
func Localize(err error, acceptLanguage string) string {
	perr := AsError(err)
	if perr == nil {
		return ""
	}
	_, idx := language.MatchStrings(matcher, acceptLanguage)
	printer := message.NewPrinter(supportedLanguages[idx], message.Catalog(messages))
	if perr.Category == CategoryInternal {
		return printer.Sprintf(MsgInternal)
	}
	return printer.Sprintf(perr.Message, perr.Args...)
}
