// Package apiserver implements the API process: the HTTP-facing
// reactor (C6) and its request codec (C7). It parses inbound HTTP at
// fixed byte offsets rather than with a general-purpose router,
// matching the original's single-shot recv-and-scan approach, and
// talks to the storage process using internal/storageproto's framing
// over a fresh TCP dial per request.
package apiserver

import (
	"bytes"
	"fmt"
	"strconv"
)

// Recognized HTTP methods/paths. A recognized path with the wrong verb
// is 405 and one without a digit at the id offset is 400; any other
// path is 404 (400 if the request is under 4 bytes) — this codec is
// deliberately not a general router.
const (
	methodExtrato    = "GET /clientes/"
	methodTransacoes = "POST /clientes/"

	// idOffsetExtrato/idOffsetTransacoes are the fixed byte positions of
	// the single customer-id digit in each request line.
	idOffsetExtrato    = 14
	idOffsetTransacoes = 15
)

// ParsedRequest is the outcome of parsing one HTTP request buffer: an
// id and opcode to send to storage, or a terminal error response that
// short-circuits the FSM before storage is ever contacted.
type ParsedRequest struct {
	// CustomerID is the parsed single-digit id, valid when Err is 0.
	CustomerID int32
	// IsExtrato distinguishes GET /extrato from POST /transacoes.
	IsExtrato bool
	// Valor, Tipo, Descricao are populated only for POST requests.
	Valor     int32
	Tipo      byte
	Descricao string

	// Err is the terminal HTTP status to respond with directly,
	// skipping storage entirely. Zero means "proceed to storage".
	Err int
}

// ParseRequest recognizes the two supported endpoints and, for POST,
// the JSON transaction body. buf is the raw bytes read from the
// client socket in one recv call.
func ParseRequest(buf []byte) ParsedRequest {
	isExtratoPath := bytes.Contains(buf, []byte("/extrato"))
	isTransacoesPath := bytes.Contains(buf, []byte("/transacoes"))

	switch {
	case isExtratoPath:
		if !bytes.HasPrefix(buf, []byte(methodExtrato)) {
			return ParsedRequest{Err: 405}
		}
		id, ok := digitAt(buf, idOffsetExtrato)
		if !ok {
			return ParsedRequest{Err: 400}
		}
		return ParsedRequest{CustomerID: id, IsExtrato: true}

	case isTransacoesPath:
		if !bytes.HasPrefix(buf, []byte(methodTransacoes)) {
			return ParsedRequest{Err: 405}
		}
		id, ok := digitAt(buf, idOffsetTransacoes)
		if !ok {
			return ParsedRequest{Err: 400}
		}
		valor, tipo, descricao, ok := parseTransactionBody(buf)
		if !ok {
			return ParsedRequest{Err: 422}
		}
		return ParsedRequest{CustomerID: id, Valor: valor, Tipo: tipo, Descricao: descricao}

	default:
		if len(buf) < 4 {
			return ParsedRequest{Err: 400}
		}
		return ParsedRequest{Err: 404}
	}
}

func digitAt(buf []byte, pos int) (int32, bool) {
	if len(buf) <= pos {
		return 0, false
	}
	d := buf[pos]
	if d < '0' || d > '9' {
		return 0, false
	}
	return int32(d - '0'), true
}

// parseTransactionBody locates the JSON object's opening brace, then
// scans forward for the valor/tipo/descricao keys in any order,
// reading each value up to the next ':' and, for strings, the
// enclosing quotes. This mirrors the original's forward-scan parser
// rather than a general JSON decoder, so a body with extra whitespace
// or reordered keys still parses the same way.
func parseTransactionBody(buf []byte) (valor int32, tipo byte, descricao string, ok bool) {
	start := bytes.IndexByte(buf, '{')
	if start < 0 {
		return 0, 0, "", false
	}
	body := buf[start:]

	valorStr, ok := scanValue(body, "valor")
	if !ok {
		return 0, 0, "", false
	}
	v, err := strconv.ParseInt(valorStr, 10, 32)
	if err != nil || v <= 0 {
		return 0, 0, "", false
	}

	tipoStr, ok := scanValue(body, "tipo")
	if !ok || len(tipoStr) != 1 || (tipoStr[0] != 'c' && tipoStr[0] != 'd') {
		return 0, 0, "", false
	}

	descStr, ok := scanValue(body, "descricao")
	if !ok || len(descStr) < 1 || len(descStr) > 10 {
		return 0, 0, "", false
	}

	return int32(v), tipoStr[0], descStr, true
}

// scanValue finds `"key"` in body, then reads the value following the
// next ':': a quoted string if one starts before any other non-space
// character, otherwise a bare token up through the next ',' or '}'.
func scanValue(body []byte, key string) (string, bool) {
	idx := bytes.Index(body, []byte(`"`+key+`"`))
	if idx < 0 {
		return "", false
	}
	rest := body[idx+len(key)+2:]
	colon := bytes.IndexByte(rest, ':')
	if colon < 0 {
		return "", false
	}
	rest = rest[colon+1:]

	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	if i >= len(rest) {
		return "", false
	}

	if rest[i] == '"' {
		end := bytes.IndexByte(rest[i+1:], '"')
		if end < 0 {
			return "", false
		}
		return string(rest[i+1 : i+1+end]), true
	}

	end := i
	for end < len(rest) && rest[end] != ',' && rest[end] != '}' {
		end++
	}
	return string(bytes.TrimSpace(rest[i:end])), true
}

// statusLine maps an HTTP status code to its status line text.
func statusLine(status int) string {
	switch status {
	case 200:
		return "200 OK"
	case 400:
		return "400 Bad Request"
	case 404:
		return "404 Not Found"
	case 405:
		return "405 Method Not Allowed"
	case 422:
		return "422 Unprocessable Entity"
	default:
		return "500 Internal Server Error"
	}
}

// BuildHTTPResponse assembles a minimal HTTP/1.1 response with a JSON
// body (or an empty body for error statuses with none).
func BuildHTTPResponse(status int, body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %s\r\n", statusLine(status))
	buf.WriteString("Content-Type: application/json\r\n")
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(body))
	buf.WriteString("Connection: close\r\n\r\n")
	buf.Write(body)
	return buf.Bytes()
}
