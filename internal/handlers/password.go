package handlers

import (
	"errors"
	"net/http"

	pkghttp "github.com/BradenHooton/keypass/pkg/http"
	"github.com/BradenHooton/keypass/pkg/passgen"
)

// GeneratePasswordRequest mirrors passgen.Options. Pointers distinguish
// "not sent" from false so the defaults apply to omitted flags.
type GeneratePasswordRequest struct {
	Length                   *int  `json:"length" validate:"omitempty,gte=4,lte=128"`
	Numbers                  *bool `json:"numbers"`
	Symbols                  *bool `json:"symbols"`
	Lowercase                *bool `json:"lowercase"`
	Uppercase                *bool `json:"uppercase"`
	ExcludeSimilarCharacters *bool `json:"excludeSimilarCharacters"`
	Strict                   *bool `json:"strict"`
}

func (req GeneratePasswordRequest) options() passgen.Options {
	opts := passgen.Defaults()
	if req.Length != nil {
		opts.Length = *req.Length
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&opts.Numbers, req.Numbers)
	set(&opts.Symbols, req.Symbols)
	set(&opts.Lowercase, req.Lowercase)
	set(&opts.Uppercase, req.Uppercase)
	set(&opts.ExcludeSimilarCharacters, req.ExcludeSimilarCharacters)
	set(&opts.Strict, req.Strict)
	return opts
}

// PasswordResponse carries a generated password
type PasswordResponse struct {
	Password string `json:"password"`
}

// GeneratePassword handles POST /generate-password
func GeneratePassword(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req GeneratePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	password, err := passgen.Generate(req.options())
	if err != nil {
		if errors.Is(err, passgen.ErrInvalidLength) || errors.Is(err, passgen.ErrNoPool) {
			pkghttp.WriteValidationError(w, err.Error(), "")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteOK(w, PasswordResponse{Password: password})
}
