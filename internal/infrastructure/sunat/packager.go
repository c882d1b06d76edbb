package sunat

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	pkgsunat "github.com/jhoicas/facturador-sunat/pkg/sunat"
)

// ErrArchiveEntryNotFound el ZIP no contiene la entrada solicitada (o está vacío).
var ErrArchiveEntryNotFound = errors.New("zip: entrada no encontrada")

const (
	singleNumberWidth = 8
	batchNumberWidth  = 5
)

// BuildArchive empaqueta el XML firmado en un ZIP de una sola entrada y lo devuelve en Base64.
// SUNAT exige que la entrada se llame igual que el ZIP con extensión .xml.
func BuildArchive(filename, payload string) (string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.Create(filename)
	if err != nil {
		return "", fmt.Errorf("zip: crear entrada %s: %w", filename, err)
	}
	if _, err := io.WriteString(fw, payload); err != nil {
		return "", fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ExtractArchive devuelve el contenido de la entrada entryName del ZIP en Base64.
// Con entryName vacío devuelve la primera entrada que no sea directorio
// (los CDR de SUNAT suelen traer una carpeta "dummy/" antes del XML).
func ExtractArchive(archiveB64, entryName string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(archiveB64))
	if err != nil {
		return "", fmt.Errorf("zip: decodificar base64: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("zip: abrir archivo: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if entryName != "" && f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("zip: abrir entrada %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("zip: leer entrada %s: %w", f.Name, err)
		}
		return string(content), nil
	}
	if entryName != "" {
		return "", fmt.Errorf("%w: %s", ErrArchiveEntryNotFound, entryName)
	}
	return "", ErrArchiveEntryNotFound
}

// BuildFilename genera el nombre del XML de un comprobante individual:
//
//	{RUC}-{TIPO}-{SERIE}-{CORRELATIVO 8 dígitos}.xml
//
// Ejemplo: 20123456789-01-F001-00000001.xml
func BuildFilename(taxID, kindCode, series, number string) string {
	return strings.TrimSpace(taxID) + "-" + strings.TrimSpace(kindCode) + "-" +
		strings.TrimSpace(series) + "-" + padNumber(number, singleNumberWidth) + ".xml"
}

// BuildBatchFilename genera el nombre base de un resumen diario o comunicación de baja:
//
//	{RUC}-{RC|RA}-{yyyyMMdd}-{CORRELATIVO 5 dígitos}
func BuildBatchFilename(taxID, series string, date time.Time, number string) string {
	return strings.TrimSpace(taxID) + "-" + strings.TrimSpace(series) + "-" +
		date.Format("20060102") + "-" + padNumber(number, batchNumberWidth)
}

// ZipName devuelve el nombre del ZIP para el parámetro fileName del WS.
func ZipName(xmlName string) string {
	return strings.TrimSuffix(xmlName, ".xml") + ".zip"
}

// KindCode traduce el tipo de comprobante al código del catálogo 01 (o RC/RA).
func KindCode(kind entity.DocumentKind) (string, error) {
	switch kind {
	case entity.DocumentKindInvoice:
		return pkgsunat.DocTypeInvoice, nil
	case entity.DocumentKindReceipt:
		return pkgsunat.DocTypeReceipt, nil
	case entity.DocumentKindCreditNote:
		return pkgsunat.DocTypeCreditNote, nil
	case entity.DocumentKindDebitNote:
		return pkgsunat.DocTypeDebitNote, nil
	case entity.DocumentKindSummary:
		return pkgsunat.DocTypeSummary, nil
	case entity.DocumentKindVoid:
		return pkgsunat.DocTypeVoid, nil
	}
	return "", fmt.Errorf("tipo de comprobante desconocido %q", kind)
}

// FilenameFor arma el nombre del XML según el tipo de comprobante (individual o lote).
func FilenameFor(taxID string, doc *entity.Document) (string, error) {
	code, err := KindCode(doc.Kind)
	if err != nil {
		return "", err
	}
	if doc.Kind.IsBatch() {
		return BuildBatchFilename(taxID, code, doc.IssueDate, doc.Number) + ".xml", nil
	}
	return BuildFilename(taxID, code, doc.Series, doc.Number), nil
}

// padNumber rellena con ceros a la izquierda; los correlativos más largos se dejan intactos.
func padNumber(number string, width int) string {
	n := strings.TrimLeft(strings.TrimSpace(number), "0")
	if n == "" {
		n = "0"
	}
	if len(n) >= width {
		return n
	}
	return strings.Repeat("0", width-len(n)) + n
}
