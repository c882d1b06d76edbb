package dto

import (
	"strings"
	"time"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/domain/entity"
)

// DocumentStatusResponse estado del comprobante frente a SUNAT para GET /api/documents/:id.
type DocumentStatusResponse struct {
	ID                  string       `json:"id"`
	Kind                string       `json:"kind"`
	FullNumber          string       `json:"full_number"`
	IssueDate           string       `json:"issue_date"` // YYYY-MM-DD
	Status              string       `json:"status"`
	Ticket              string       `json:"ticket,omitempty"`
	ResponseCode        string       `json:"response_code,omitempty"`
	ResponseDescription string       `json:"response_description,omitempty"`
	Notes               []string     `json:"notes,omitempty"`
	HasCDR              bool         `json:"has_cdr"`
	RespondedAt         *time.Time   `json:"responded_at,omitempty"`
	Job                 *JobResponse `json:"job,omitempty"`
}

// JobResponse último job del comprobante.
type JobResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	NextRunAt   time.Time  `json:"next_run_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewDocumentStatusResponse arma la respuesta; el XML firmado y el CDR no se exponen.
func NewDocumentStatusResponse(st *submission.DocumentState) DocumentStatusResponse {
	d := st.Document
	out := DocumentStatusResponse{
		ID:                  d.ID,
		Kind:                string(d.Kind),
		FullNumber:          d.FullNumber,
		IssueDate:           d.IssueDate.Format("2006-01-02"),
		Status:              string(d.Status),
		Ticket:              d.Ticket,
		ResponseCode:        d.ResponseCode,
		ResponseDescription: d.ResponseDescription,
		HasCDR:              d.AckArchive != "",
		RespondedAt:         d.RespondedAt,
	}
	if d.Notes != "" {
		out.Notes = strings.Split(d.Notes, "\n")
	}
	if st.Job != nil {
		j := NewJobResponse(st.Job)
		out.Job = &j
	}
	return out
}

// NewJobResponse mapea un job de la cola.
func NewJobResponse(j *entity.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Kind:        string(j.Kind),
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		LastError:   j.LastError,
		NextRunAt:   j.NextRunAt,
		CompletedAt: j.CompletedAt,
	}
}
