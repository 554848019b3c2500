package server

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codediagram/backend/internal/diagram"
	"github.com/codediagram/backend/internal/logging"
)

type renderD2Request struct {
	Code       string         `json:"code"`
	ReturnSVG  bool           `json:"return_svg"`
	SaveToFile bool           `json:"save_to_file"`
	Metadata   map[string]any `json:"metadata"`
}

type renderD2Response struct {
	Success    bool           `json:"success"`
	SVGContent string         `json:"svg_content,omitempty"`
	Validation validationInfo `json:"validation"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	FilePath   string         `json:"file_path,omitempty"`
	SourceFile string         `json:"source_file,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type validationInfo struct {
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) renderD2(w http.ResponseWriter, r *http.Request) {
	var req renderD2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "code is required")
		return
	}

	ok, errText := s.renderer.ValidateD2(r.Context(), req.Code)
	resp := renderD2Response{Validation: validationInfo{IsValid: ok, Error: errText}, Metadata: req.Metadata}
	if !ok {
		resp.Success = false
		resp.Error = errText
		writeJSON(w, http.StatusOK, resp)
		return
	}

	renderOK, svg, renderErr := s.renderer.RenderD2SVG(r.Context(), req.Code)
	if !renderOK {
		resp.Success = false
		resp.Error = renderErr
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Success = true
	if req.ReturnSVG {
		resp.SVGContent = svg
	}
	if req.SaveToFile {
		id := artifactID(svg)
		path, err := s.saveArtifact(diagram.KindD2, id, "svg", svg)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.FilePath = path
			if srcPath, err := s.saveArtifact(diagram.KindD2, id, "d2", req.Code); err == nil {
				resp.SourceFile = filepath.Base(srcPath)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type validateD2Request struct {
	Code string `json:"code"`
}

type validateD2Response struct {
	IsValid    bool   `json:"is_valid"`
	Error      string `json:"error,omitempty"`
	CodeLength int    `json:"code_length"`
}

func (s *Server) validateD2(w http.ResponseWriter, r *http.Request) {
	var req validateD2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	ok, errText := s.renderer.ValidateD2(r.Context(), req.Code)
	resp := validateD2Response{IsValid: ok, CodeLength: len(req.Code)}
	if !ok {
		resp.Error = errText
	}
	writeJSON(w, http.StatusOK, resp)
}

type renderMermaidRequest struct {
	Code         string `json:"code"`
	OutputFormat string `json:"output_format"`
	ReturnSVG    bool   `json:"return_svg"`
	SaveToFile   bool   `json:"save_to_file"`
}

func (s *Server) renderMermaid(w http.ResponseWriter, r *http.Request) {
	var req renderMermaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "code is required")
		return
	}
	if req.OutputFormat == "" {
		req.OutputFormat = "svg"
	}

	ok, errText := s.renderer.ValidateMermaid(r.Context(), req.Code)
	resp := renderD2Response{Validation: validationInfo{IsValid: ok, Error: errText}}
	if !ok {
		resp.Success = false
		resp.Error = errText
		writeJSON(w, http.StatusOK, resp)
		return
	}

	renderOK, data, renderErr := s.renderer.RenderMermaid(r.Context(), req.Code, req.OutputFormat)
	if !renderOK {
		resp.Success = false
		resp.Error = renderErr
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Success = true
	if req.ReturnSVG {
		resp.SVGContent = data
	}
	if req.SaveToFile {
		id := artifactID(data)
		ext := outputExt(req.OutputFormat)
		path, err := s.saveArtifact(diagram.KindMermaid, id, ext, data)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.FilePath = path
			if srcPath, err := s.saveArtifact(diagram.KindMermaid, id, "mmd", req.Code); err == nil {
				resp.SourceFile = filepath.Base(srcPath)
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type validateMermaidRequest struct {
	Code    string `json:"code"`
	AutoFix bool   `json:"auto_fix"`
}

type validateMermaidResponse struct {
	IsValid   bool   `json:"is_valid"`
	Error     string `json:"error,omitempty"`
	AutoFixed bool   `json:"auto_fixed,omitempty"`
	FixedCode string `json:"fixed_code,omitempty"`
}

func (s *Server) validateMermaid(w http.ResponseWriter, r *http.Request) {
	var req validateMermaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	ok, errText := s.renderer.ValidateMermaid(r.Context(), req.Code)
	resp := validateMermaidResponse{IsValid: ok}
	if ok {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Error = errText

	if req.AutoFix {
		fix := diagram.FixMermaidSyntax(req.Code)
		if len(fix.Corrections) > 0 {
			fixedOK, _ := s.renderer.ValidateMermaid(r.Context(), fix.CorrectedCode)
			if fixedOK {
				resp.AutoFixed = true
				resp.FixedCode = fix.CorrectedCode
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) downloadD2(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, diagram.KindD2, ".svg", "image/svg+xml")
}

func (s *Server) exportD2(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, diagram.KindD2, ".d2", "text/plain; charset=utf-8")
}

func (s *Server) exportMermaid(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, diagram.KindMermaid, ".mmd", "text/plain; charset=utf-8")
}

// serveArtifact reads a previously persisted diagram artifact (rendered
// output or raw source) back from static/<kind>_diagrams, rejecting any
// filename that doesn't carry the expected extension or escapes the
// directory.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, kind diagram.Kind, wantExt, contentType string) {
	filename := chi.URLParam(r, "filename")
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid filename")
		return
	}
	if !strings.HasSuffix(filename, wantExt) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "only "+wantExt+" files may be fetched from this endpoint")
		return
	}

	staticDir := ""
	if s.appConfig != nil {
		staticDir = s.appConfig.StaticDir
	}
	path := filepath.Join(staticDir, string(kind)+"_diagrams", filename)

	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// artifactID derives the shared basename timestamp+hash used to tie a
// rendered artifact to its raw source counterpart.
func artifactID(renderedContent string) string {
	hash := sha1.Sum([]byte(renderedContent))
	return time.Now().Format("20060102_150405") + "_" + hex.EncodeToString(hash[:])[:8]
}

func outputExt(format string) string {
	if format == "png" {
		return "png"
	}
	return "svg"
}

// saveArtifact writes content under static/<kind>_diagrams/<kind>_diagram_<id>.<ext>
// and returns the relative path, matching the persisted-artifact layout the
// repair loop uses (spec.md §6 "Persisted state layout"). PNG content is
// expected base64-encoded (RenderMermaid's convention) and is decoded
// before writing so the file on disk is valid binary.
func (s *Server) saveArtifact(kind diagram.Kind, id, ext, content string) (string, error) {
	staticDir := ""
	if s.appConfig != nil {
		staticDir = s.appConfig.StaticDir
	}
	dir := filepath.Join(staticDir, string(kind)+"_diagrams")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data := []byte(content)
	if ext == "png" {
		decoded, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return "", err
		}
		data = decoded
	}

	filename := string(kind) + "_diagram_" + id + "." + ext
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return filepath.Join("static", string(kind)+"_diagrams", filename), nil
}

type logDiagramEventRequest struct {
	EventType       string `json:"event_type"`
	DiagramType     string `json:"diagram_type"`
	CodePreview     string `json:"code_preview,omitempty"`
	CodeLength      int    `json:"code_length,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	DetectionMethod string `json:"detection_method,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`
}

func (s *Server) logDiagramEvent(w http.ResponseWriter, r *http.Request) {
	var req logDiagramEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	logging.Info().
		Str("eventType", req.EventType).
		Str("diagramType", req.DiagramType).
		Int("codeLength", req.CodeLength).
		Str("detectionMethod", req.DetectionMethod).
		Str("conversationID", req.ConversationID).
		Str("errorMessage", req.ErrorMessage).
		Msg("diagram event")

	writeSuccess(w)
}
