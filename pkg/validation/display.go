package validation

// MaxDisplayLength is the hardware LCD line width. Every display string
// below fits; SetDisplayMessage payloads are checked against it too.
const MaxDisplayLength = 40

// Display strings shown on the turnstile LCD. These are part of the
// observable contract with the hardware, byte for byte, ASCII only.
const (
	DisplayCardNotFound     = "Cartao nao cadastrado"
	DisplayCardInactive     = "Cartao inativo"
	DisplayCardExpired      = "Cartao vencido"
	DisplayUserNotFound     = "Usuario nao cadastrado"
	DisplayUserInactive     = "Usuario inativo"
	DisplayUserExpired      = "Usuario vencido"
	DisplayMethodNotAllowed = "Metodo de acesso nao permitido"
	DisplayAntiPassback     = "Bloqueio por anti-dupla"
	DisplayAccessGranted    = "Acesso liberado"
)
