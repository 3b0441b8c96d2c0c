package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/raywall/integra-contador/pkg/domain"
)

// MaxRawExcerpt limita o trecho do corpo usado quando nenhum formato casa.
const MaxRawExcerpt = 300

// ErrorParser tenta extrair uma mensagem legível de um corpo de erro.
// ok=false significa "formato não reconhecido, tente o próximo".
type ErrorParser interface {
	Parse(body []byte) (msg string, ok bool)
}

// ErrorParserFunc adapta uma função para ErrorParser.
type ErrorParserFunc func(body []byte) (string, bool)

func (f ErrorParserFunc) Parse(body []byte) (string, bool) { return f(body) }

// DefaultErrorParsers é a cadeia padrão; o primeiro que reconhece vence.
var DefaultErrorParsers = []ErrorParser{
	ErrorParserFunc(parseMensagens),
	ErrorParserFunc(parseMessages),
	ErrorParserFunc(parseErrorField),
	RawExcerpt(MaxRawExcerpt),
}

type codedMessage struct {
	code, text string
}

func joinMessages(list []codedMessage) (string, bool) {
	parts := make([]string, 0, len(list))
	for _, m := range list {
		code, text := strings.TrimSpace(m.code), strings.TrimSpace(m.text)
		switch {
		case code != "" && text != "":
			parts = append(parts, fmt.Sprintf("[%s] %s", code, text))
		case text != "":
			parts = append(parts, text)
		case code != "":
			parts = append(parts, fmt.Sprintf("[%s]", code))
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " | "), true
}

// parseMensagens reconhece o envelope do gateway: {"mensagens":[{"codigo","texto"}]}.
func parseMensagens(body []byte) (string, bool) {
	var env struct {
		Mensagens []struct {
			Codigo string `json:"codigo"`
			Texto  string `json:"texto"`
		} `json:"mensagens"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}
	list := make([]codedMessage, 0, len(env.Mensagens))
	for _, m := range env.Mensagens {
		list = append(list, codedMessage{m.Codigo, m.Texto})
	}
	return joinMessages(list)
}

// parseMessages reconhece a variante em inglês: {"messages":[{"code","message"}]}.
func parseMessages(body []byte) (string, bool) {
	var env struct {
		Messages []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}
	list := make([]codedMessage, 0, len(env.Messages))
	for _, m := range env.Messages {
		list = append(list, codedMessage{m.Code, m.Message})
	}
	return joinMessages(list)
}

// parseErrorField reconhece {"error": "..."} e {"error_description": "..."},
// formato usado pelo endpoint OAuth e por proxies na frente do gateway.
func parseErrorField(body []byte) (string, bool) {
	var env struct {
		Error       json.RawMessage `json:"error"`
		Description string          `json:"error_description"`
		Message     string          `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false
	}

	var code string
	if len(env.Error) > 0 {
		if err := json.Unmarshal(env.Error, &code); err != nil {
			code = string(env.Error)
		}
	}
	code = strings.TrimSpace(code)
	text := strings.TrimSpace(env.Description)
	if text == "" {
		text = strings.TrimSpace(env.Message)
	}
	switch {
	case code == "" && text == "":
		return "", false
	case text == "":
		// "error" sozinho já é a mensagem, não um código.
		return code, true
	}
	return joinMessages([]codedMessage{{code, text}})
}

// RawExcerpt é o último recurso: o corpo cru, aparado e truncado em n runas.
func RawExcerpt(n int) ErrorParser {
	return ErrorParserFunc(func(body []byte) (string, bool) {
		s := strings.TrimSpace(string(bytes.ToValidUTF8(body, []byte("?"))))
		if s == "" {
			return "", false
		}
		if utf8.RuneCountInString(s) > n {
			s = string([]rune(s)[:n]) + "..."
		}
		return s, true
	})
}

// ExtractMessage percorre a cadeia e devolve a primeira mensagem reconhecida.
func ExtractMessage(body []byte, parsers ...ErrorParser) (string, bool) {
	if len(parsers) == 0 {
		parsers = DefaultErrorParsers
	}
	for _, p := range parsers {
		if msg, ok := p.Parse(body); ok {
			return msg, true
		}
	}
	return "", false
}

// ParseResponse transforma a resposta crua em resultado ou *domain.GatewayError.
// Em 2xx tenta JSON e, se falhar, devolve o texto. Fora de 2xx o chamador
// só recebe a mensagem extraída, nunca o corpo inteiro.
func ParseResponse(raw *RawResponse) (domain.Result, error) {
	if raw.Status >= 200 && raw.Status < 300 {
		return domain.Result{Status: raw.Status, Data: decodeBody(raw.Body)}, nil
	}

	msg, ok := ExtractMessage(raw.Body)
	if !ok {
		msg = http.StatusText(raw.Status)
	}
	return domain.Result{Status: raw.Status}, &domain.GatewayError{Status: raw.Status, Message: msg}
}

func decodeBody(body []byte) interface{} {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var data interface{}
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return string(body)
	}
	return data
}
