package domain

// Verdict é o resultado de uma checagem. É produzido a cada chamada e nunca
// é persistido.
type Verdict struct {
	Limited    bool
	RetryAfter int // segundos; >= 1 quando Limited
	Remaining  int
}

// ActionResult é a forma do veredito para chamadas sem requisição HTTP
// (ações de servidor identificadas apenas pelo usuário).
type ActionResult struct {
	Success    bool
	Error      string
	RetryAfter int
}

// RequestMetadata carrega os cabeçalhos de endereço usados para identificar
// chamadores anônimos.
type RequestMetadata struct {
	ForwardedFor string
	RealIP       string
}
