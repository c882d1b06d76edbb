package sunat

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
	pkgsunat "github.com/jhoicas/facturador-sunat/pkg/sunat"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	// DefaultSandboxURL endpoint beta (homologación) del billService.
	DefaultSandboxURL = "https://e-beta.sunat.gob.pe/ol-ti-itcpfegem-beta/billService"
	// DefaultProductionURL endpoint de producción del billService.
	DefaultProductionURL = "https://e-factura.sunat.gob.pe/ol-ti-itcpfegem/billService"

	soapNS    = "http://schemas.xmlsoap.org/soap/envelope/"
	serviceNS = "http://service.sunat.gob.pe"
	wsseNS    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	pwdType   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"

	opSendBill    = "sendBill"
	opSendSummary = "sendSummary"
	opGetStatus   = "getStatus"

	// maxResponseBytes tope de lectura de la respuesta; un CDR real ocupa pocos KB.
	maxResponseBytes = 10 << 20
)

// ErrUnknownEnvironment el tenant tiene un entorno que no es sandbox ni production.
var ErrUnknownEnvironment = errors.New("soap: entorno desconocido")

// ClientConfig endpoints y timeout del cliente SOAP.
type ClientConfig struct {
	SandboxURL    string
	ProductionURL string
	Timeout       time.Duration
}

// ── Implementación SOAP ────────────────────────────────────────────────────────

// SOAPClient implementa BillService contra el WS billService de SUNAT.
type SOAPClient struct {
	httpClient *http.Client
	cfg        ClientConfig
	log        zerolog.Logger
}

// NewSOAPClient construye el cliente. Los campos vacíos de cfg toman los valores por defecto
// (endpoints oficiales y 60 s de timeout: el WS puede tardar varios segundos en responder).
func NewSOAPClient(cfg ClientConfig, log zerolog.Logger) *SOAPClient {
	if cfg.SandboxURL == "" {
		cfg.SandboxURL = DefaultSandboxURL
	}
	if cfg.ProductionURL == "" {
		cfg.ProductionURL = DefaultProductionURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &SOAPClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		log:        log.With().Str("component", "sunat_soap").Logger(),
	}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName   xml.Name   `xml:"soapenv:Envelope"`
	XmlnsEnv  string     `xml:"xmlns:soapenv,attr"`
	XmlnsSer  string     `xml:"xmlns:ser,attr"`
	XmlnsWsse string     `xml:"xmlns:wsse,attr"`
	Header    soapHeader `xml:"soapenv:Header"`
	Body      soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct {
	Security wsseSecurity `xml:"wsse:Security"`
}

type wsseSecurity struct {
	UsernameToken wsseUsernameToken `xml:"wsse:UsernameToken"`
}

type wsseUsernameToken struct {
	Username string       `xml:"wsse:Username"`
	Password wssePassword `xml:"wsse:Password"`
}

type wssePassword struct {
	Type  string `xml:"Type,attr"`
	Value string `xml:",chardata"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type sendBillBody struct {
	XMLName     xml.Name `xml:"ser:sendBill"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"` // ZIP en Base64
}

type sendSummaryBody struct {
	XMLName     xml.Name `xml:"ser:sendSummary"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"`
}

type getStatusBody struct {
	XMLName xml.Name `xml:"ser:getStatus"`
	Ticket  string   `xml:"ticket"`
}

// ── Estructuras de respuesta SOAP ─────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	SendBill    *sendBillResponse    `xml:"sendBillResponse"`
	SendSummary *sendSummaryResponse `xml:"sendSummaryResponse"`
	GetStatus   *getStatusResponse   `xml:"getStatusResponse"`
	Fault       *soapFault           `xml:"Fault"`
}

type sendBillResponse struct {
	ApplicationResponse string `xml:"applicationResponse"`
}

type sendSummaryResponse struct {
	Ticket string `xml:"ticket"`
}

type getStatusResponse struct {
	Status struct {
		StatusCode string `xml:"statusCode"`
		Content    string `xml:"content"`
	} `xml:"status"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// SendSingle envía un comprobante individual (sendBill). El CDR viene en la misma respuesta.
func (c *SOAPClient) SendSingle(ctx context.Context, env entity.Environment, creds Credentials, filename, archiveB64 string) (*SendSingleResult, error) {
	body, err := c.call(ctx, opSendBill, env, creds, &sendBillBody{
		FileName:    filename,
		ContentFile: archiveB64,
	})
	if err != nil {
		return nil, err
	}
	if body.SendBill == nil || strings.TrimSpace(body.SendBill.ApplicationResponse) == "" {
		return nil, &ParseError{Field: "applicationResponse", Message: "sendBill respondió sin CDR"}
	}
	return &SendSingleResult{CDRArchive: strings.TrimSpace(body.SendBill.ApplicationResponse)}, nil
}

// SendBatch envía un resumen diario o comunicación de baja (sendSummary) y devuelve el ticket.
func (c *SOAPClient) SendBatch(ctx context.Context, env entity.Environment, creds Credentials, filename, archiveB64 string) (*SendBatchResult, error) {
	body, err := c.call(ctx, opSendSummary, env, creds, &sendSummaryBody{
		FileName:    filename,
		ContentFile: archiveB64,
	})
	if err != nil {
		return nil, err
	}
	if body.SendSummary == nil || strings.TrimSpace(body.SendSummary.Ticket) == "" {
		return nil, &ParseError{Field: "ticket", Message: "sendSummary respondió sin ticket"}
	}
	return &SendBatchResult{Ticket: strings.TrimSpace(body.SendSummary.Ticket)}, nil
}

// PollTicket consulta el estado de un ticket (getStatus).
func (c *SOAPClient) PollTicket(ctx context.Context, env entity.Environment, creds Credentials, ticket string) (*TicketStatus, error) {
	body, err := c.call(ctx, opGetStatus, env, creds, &getStatusBody{Ticket: ticket})
	if err != nil {
		return nil, err
	}
	if body.GetStatus == nil || strings.TrimSpace(body.GetStatus.Status.StatusCode) == "" {
		return nil, &ParseError{Field: "statusCode", Message: "getStatus respondió sin statusCode"}
	}
	return &TicketStatus{
		StatusCode: strings.TrimSpace(body.GetStatus.Status.StatusCode),
		CDRArchive: strings.TrimSpace(body.GetStatus.Status.Content),
	}, nil
}

// endpoint resuelve la URL según el entorno del tenant.
func (c *SOAPClient) endpoint(env entity.Environment) (string, error) {
	switch env {
	case entity.EnvironmentSandbox:
		return c.cfg.SandboxURL, nil
	case entity.EnvironmentProduction:
		return c.cfg.ProductionURL, nil
	}
	return "", fmt.Errorf("%w %q (usar 'sandbox' o 'production')", ErrUnknownEnvironment, env)
}

// call arma el envelope, lo envía y clasifica la respuesta en body, *FaultError o *TransportError.
func (c *SOAPClient) call(ctx context.Context, op string, env entity.Environment, creds Credentials, content interface{}) (*soapResponseBody, error) {
	url, err := c.endpoint(env)
	if err != nil {
		return nil, err
	}

	envelope := soapEnvelope{
		XmlnsEnv:  soapNS,
		XmlnsSer:  serviceNS,
		XmlnsWsse: wsseNS,
		Header: soapHeader{Security: wsseSecurity{UsernameToken: wsseUsernameToken{
			Username: creds.Username,
			Password: wssePassword{Type: pwdType, Value: creds.Password},
		}}},
		Body: soapBody{Content: content},
	}

	xmlPayload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap %s: serializar envelope: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(xmlPayload))
	if err != nil {
		return nil, fmt.Errorf("soap %s: crear request: %w", op, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "urn:"+op)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("timeout o cancelación: %w", ctx.Err())}
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: op, HTTPStatus: resp.StatusCode, Err: fmt.Errorf("leer respuesta: %w", err)}
	}

	c.log.Debug().
		Str("op", op).
		Str("env", string(env)).
		Int("status", resp.StatusCode).
		Int("bytes", len(rawBody)).
		Dur("elapsed", time.Since(start)).
		Msg("respuesta SOAP")

	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		return nil, classifyUnreadable(op, resp.StatusCode, err)
	}

	// SOAP Fault (autenticación, validación, indisponibilidad del servicio)
	if f := envResp.Body.Fault; f != nil {
		code := authorityCodeFrom(f.FaultCode, f.FaultString)
		msg := strings.TrimSpace(f.FaultString)
		if msg == "" || msg == code {
			msg = pkgsunat.Describe(code)
		}
		return nil, &FaultError{
			Op:            op,
			FaultCode:     strings.TrimSpace(f.FaultCode),
			AuthorityCode: code,
			Message:       msg,
			HTTPStatus:    resp.StatusCode,
		}
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyUnreadable(op, resp.StatusCode, fmt.Errorf("HTTP %d sin Fault", resp.StatusCode))
	}
	return &envResp.Body, nil
}

// classifyUnreadable decide la clase de error cuando la respuesta no trae un envelope útil.
// 5xx, 408, 429 y cuerpos ilegibles con 2xx son transitorios; el resto de 4xx es rechazo.
func classifyUnreadable(op string, status int, cause error) error {
	switch {
	case status >= 400 && status < 500 &&
		status != http.StatusRequestTimeout && status != http.StatusTooManyRequests:
		return &FaultError{
			Op:         op,
			FaultCode:  fmt.Sprintf("HTTP %d", status),
			Message:    http.StatusText(status),
			HTTPStatus: status,
		}
	default:
		return &TransportError{Op: op, HTTPStatus: status, Err: fmt.Errorf("respuesta SOAP ilegible: %w", cause)}
	}
}
