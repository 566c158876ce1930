package process

import (
	"errors"
	"path"
	"strings"
)

// ErrNotFound: processo ou módulo não encontrado.
var ErrNotFound = errors.New("not found")

// sameName compara nomes de executável/módulo ignorando caixa e diretório
// (no wine os nomes chegam como caminhos windows).
func sameName(candidate, want string) bool {
	candidate = strings.ReplaceAll(candidate, `\`, "/")
	return strings.EqualFold(path.Base(candidate), want)
}
