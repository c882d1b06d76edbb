package sunat

import (
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	pkgsunat "github.com/jhoicas/facturador-sunat/pkg/sunat"
)

// CDR Constancia de Recepción (ApplicationResponse UBL) ya interpretada.
type CDR struct {
	ResponseCode string
	Description  string
	ReferenceID  string   // serie-número del comprobante respondido
	Notes        []string // cbc:Note: observaciones (ej: "4252 - ...")
	Accepted     bool     // ResponseCode empieza con '0'
}

// Observed indica aceptación con observaciones.
func (c *CDR) Observed() bool {
	return c.Accepted && len(c.Notes) > 0
}

// ParseCDR descomprime el ZIP Base64 devuelto por el WS e interpreta el XML que contiene.
func ParseCDR(archiveB64 string) (*CDR, error) {
	if strings.TrimSpace(archiveB64) == "" {
		return nil, &ParseError{Field: "archive", Message: "CDR vacío"}
	}
	content, err := ExtractArchive(archiveB64, "")
	if err != nil {
		return nil, &ParseError{Field: "archive", Message: "no se pudo descomprimir el CDR", Cause: err}
	}
	return ParseCDRXML([]byte(content))
}

// ParseCDRXML interpreta el ApplicationResponse. Se buscan los elementos por nombre local
// sin importar el prefijo (cbc:, ns2:, etc.), y se toma la primera ocurrencia.
// Sin ResponseCode devuelve *ParseError: un CDR ilegible nunca se asume aceptado ni rechazado.
func ParseCDRXML(raw []byte) (*CDR, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, &ParseError{Field: "xml", Message: "XML mal formado", Cause: err}
	}
	if doc.Root() == nil {
		return nil, &ParseError{Field: "xml", Message: "documento sin raíz"}
	}

	codeEl := doc.FindElement("//DocumentResponse/Response/ResponseCode")
	if codeEl == nil {
		codeEl = doc.FindElement("//ResponseCode")
	}
	if codeEl == nil {
		return nil, &ParseError{Field: "ResponseCode", Message: "elemento ausente"}
	}
	code := strings.TrimSpace(codeEl.Text())
	if code == "" {
		return nil, &ParseError{Field: "ResponseCode", Message: "valor vacío"}
	}

	cdr := &CDR{
		ResponseCode: code,
		Accepted:     pkgsunat.IsAccepted(code),
	}

	// Description y ReferenceID viven junto al ResponseCode dentro de cac:Response.
	if parent := codeEl.Parent(); parent != nil {
		cdr.Description = childText(parent, "Description")
		cdr.ReferenceID = childText(parent, "ReferenceID")
	}
	if cdr.Description == "" {
		if d := doc.FindElement("//Description"); d != nil {
			cdr.Description = strings.TrimSpace(d.Text())
		}
	}
	if cdr.Description == "" {
		cdr.Description = pkgsunat.Describe(code)
	}

	for _, n := range doc.FindElements("//Note") {
		if t := strings.TrimSpace(n.Text()); t != "" {
			cdr.Notes = append(cdr.Notes, t)
		}
	}
	return cdr, nil
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

// charsetReader los CDR antiguos declaran ISO-8859-1.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	}
	return input, nil
}
