// AngelaMos | 2026
// documents.go

package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/planejarpatrimonio/backend/internal/core"
)

const (
	CategoryDocuments = "documents"
	CategoryContracts = "contracts"
)

var (
	ErrInvalidUpload = fmt.Errorf("invalid upload: %w", core.ErrInvalidInput)
	ErrNotPDF        = fmt.Errorf("contracts must be PDF files: %w", core.ErrInvalidInput)
	ErrUploadFailed  = errors.New("upload failed")
)

// sniffLen is how much of a file is inspected to detect its type.
const sniffLen = 3072

type DocumentUpload struct {
	ProjectID  string
	PhaseID    int
	Category   string
	UploadedBy string
	File       core.File
}

// UploadDocument stores the file and records it as the next version of
// its name within the project phase, deprecating the previous version.
// The category becomes the first object key segment, so only
// CategoryDocuments (or empty, meaning the same) is accepted here.
func (s *Service) UploadDocument(ctx context.Context, in DocumentUpload) (*Document, error) {
	switch in.Category {
	case "", CategoryDocuments:
		in.Category = CategoryDocuments
	default:
		s.logger.WarnContext(ctx, "document upload rejected: unknown category",
			"project_id", in.ProjectID,
			"category", in.Category,
		)
		return nil, ErrInvalidUpload
	}
	return s.upload(ctx, s.buckets.Documents, in)
}

// UploadContract is UploadDocument for signed contracts, which must be PDF
// by both extension and content.
func (s *Service) UploadContract(ctx context.Context, in DocumentUpload) (*Document, error) {
	if !isPDF(&in.File) {
		s.logger.WarnContext(ctx, "contract upload rejected: not a pdf",
			"project_id", in.ProjectID,
			"name", in.File.Name,
		)
		return nil, ErrNotPDF
	}

	in.Category = CategoryContracts
	in.File.ContentType = "application/pdf"
	return s.upload(ctx, s.buckets.Contracts, in)
}

func (s *Service) upload(ctx context.Context, bucket string, in DocumentUpload) (*Document, error) {
	if in.ProjectID == "" || in.UploadedBy == "" || in.File.Name == "" || in.File.Body == nil {
		return nil, ErrInvalidUpload
	}
	if in.PhaseID != 0 && !ValidPhase(in.PhaseID) {
		return nil, ErrInvalidUpload
	}

	path := core.ObjectPath(in.Category, in.ProjectID, in.PhaseID, in.File.Name, s.now())

	url, err := s.store.Put(ctx, bucket, path, in.File.Body, in.File.Size, in.File.ContentType)
	if err != nil {
		s.logger.ErrorContext(ctx, "store document failed",
			"project_id", in.ProjectID,
			"path", path,
			"error", err,
		)
		return nil, ErrUploadFailed
	}

	var phaseID *int
	if in.PhaseID != 0 {
		phaseID = &in.PhaseID
	}

	row := DocumentRow{
		ID:         uuid.New().String(),
		ProjectID:  in.ProjectID,
		PhaseID:    phaseID,
		Name:       in.File.Name,
		URL:        url,
		Path:       path,
		Category:   in.Category,
		UploadedBy: in.UploadedBy,
		Status:     string(DocumentActive),
	}

	err = s.repo.WithTx(ctx, func(repo Repository) error {
		latest, err := repo.LatestDocumentVersion(ctx, in.ProjectID, phaseID, row.Name)
		if err != nil {
			return err
		}
		if err := repo.DeprecateDocumentsNamed(ctx, in.ProjectID, phaseID, row.Name); err != nil {
			return err
		}
		row.Version = latest + 1
		return repo.InsertDocument(ctx, &row)
	})
	if err != nil {
		s.logFailure(ctx, "record document failed", err, "project_id", in.ProjectID)
		s.removeObject(ctx, bucket, path)
		return nil, ErrUploadFailed
	}

	s.logger.InfoContext(ctx, "document uploaded",
		"project_id", in.ProjectID,
		"document_id", row.ID,
		"version", row.Version,
	)

	doc := toDocument(row)
	return &doc, nil
}

// DeprecateDocument flags an active document as superseded. The stored
// object is kept.
func (s *Service) DeprecateDocument(ctx context.Context, projectID, docID string) bool {
	if err := s.repo.DeprecateDocument(ctx, projectID, docID); err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logFailure(ctx, "deprecate document failed", err, "document_id", docID)
		}
		return false
	}
	return true
}

// isPDF checks the extension and the leading bytes of f. The bytes read
// are stitched back in front of f.Body.
func isPDF(f *core.File) bool {
	if !strings.EqualFold(filepath.Ext(f.Name), ".pdf") || f.Body == nil {
		return false
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false
	}
	head = head[:n]
	f.Body = io.MultiReader(bytes.NewReader(head), f.Body)

	return mimetype.Detect(head).Is("application/pdf")
}
