package gateway

import (
	"bytes"
	"encoding/json"
)

// TipoCNPJ é o código de tipo de contribuinte para pessoa jurídica.
const TipoCNPJ = 2

// Party identifica contratante, autor do pedido ou contribuinte.
type Party struct {
	Numero string `json:"numero"`
	Tipo   int    `json:"tipo"`
}

// PedidoDados carrega a identificação do serviço e o payload serializado.
// Dados é uma string contendo JSON (ou vazia, em alguns serviços).
type PedidoDados struct {
	IDSistema     string `json:"idSistema"`
	IDServico     string `json:"idServico"`
	VersaoSistema string `json:"versaoSistema"`
	Dados         string `json:"dados"`
}

// Envelope é o corpo literal enviado aos endpoints Consultar/Emitir/Solicitar.
type Envelope struct {
	Contratante      Party       `json:"contratante"`
	AutorPedidoDados Party       `json:"autorPedidoDados"`
	Contribuinte     Party       `json:"contribuinte"`
	PedidoDados      PedidoDados `json:"pedidoDados"`
}

// NewEnvelope embrulha dados no envelope padrão. requester ocupa
// contratante e autorPedidoDados; taxID vai em contribuinte.
func NewEnvelope(requester, taxID, systemID, serviceID, version string, dados *Dados) (Envelope, error) {
	encoded, err := dados.Encode()
	if err != nil {
		return Envelope{}, err
	}
	if version == "" {
		version = "1.0"
	}
	return Envelope{
		Contratante:      Party{Numero: requester, Tipo: TipoCNPJ},
		AutorPedidoDados: Party{Numero: requester, Tipo: TipoCNPJ},
		Contribuinte:     Party{Numero: taxID, Tipo: TipoCNPJ},
		PedidoDados: PedidoDados{
			IDSistema:     systemID,
			IDServico:     serviceID,
			VersaoSistema: version,
			Dados:         encoded,
		},
	}, nil
}

// Bytes serializa sem escape de HTML e sem a quebra de linha final do Encoder.
func (e Envelope) Bytes() ([]byte, error) {
	return marshalPlain(e)
}

func marshalPlain(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Dados é o objeto interno do pedido. Mantém a ordem de inserção das chaves,
// que é a ordem em que aparecem na string serializada.
type Dados struct {
	keys   []string
	values map[string]interface{}
	empty  bool
}

// NewDados cria um objeto vazio ("{}" quando serializado).
func NewDados() *Dados {
	return &Dados{values: make(map[string]interface{})}
}

// EmptyDados serializa como string vazia, não como objeto vazio.
func EmptyDados() *Dados {
	return &Dados{values: make(map[string]interface{}), empty: true}
}

// Set grava ou substitui uma chave; substituir preserva a posição original.
func (d *Dados) Set(key string, value interface{}) *Dados {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	return d
}

func (d *Dados) Delete(key string) *Dados {
	if _, ok := d.values[key]; !ok {
		return d
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return d
}

func (d *Dados) Get(key string) (interface{}, bool) {
	v, ok := d.values[key]
	return v, ok
}

func (d *Dados) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

func (d *Dados) Keys() []string {
	return append([]string(nil), d.keys...)
}

// IsEmptyString indica o payload especial serializado como "".
func (d *Dados) IsEmptyString() bool {
	return d != nil && d.empty
}

// Encode produz a string que vai no campo pedidoDados.dados.
func (d *Dados) Encode() (string, error) {
	if d == nil || d.empty {
		return "", nil
	}
	b, err := d.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Dados) MarshalJSON() ([]byte, error) {
	if d.empty {
		return []byte(`""`), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalPlain(k)
		if err != nil {
			return nil, err
		}
		val, err := marshalPlain(d.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
