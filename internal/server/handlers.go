package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/Gowithe/scangrade-thai/internal/answerkey"
	"github.com/Gowithe/scangrade-thai/internal/geometry"
	"github.com/Gowithe/scangrade-thai/internal/imaging"
	"github.com/Gowithe/scangrade-thai/internal/keystore"
	"github.com/Gowithe/scangrade-thai/internal/omr"
	"github.com/Gowithe/scangrade-thai/internal/report"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "omr_grade_auto").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments jsoniter.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// Grading failures carry their kind in the error data so clients can tell a
// bad photo from a broken detector.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		log := s.log.WithField("tool", params.Name).WithField("error", err.Error())
		if kind := omr.KindOf(err); kind != "" {
			log.Info("Tool failed")
			return s.errorResponse(req.ID, -32000, "Tool execution failed", map[string]interface{}{
				"kind":  kind,
				"error": err.Error(),
			})
		}
		log.Warn("Tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads the photo from cache as needed
//  4. Calls the pipeline, key store or report renderer
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args jsoniter.RawMessage) (interface{}, error) {
	switch name {
	// Grading
	case "omr_grade_auto":
		return s.handleGradeAuto(ctx, args)
	case "omr_grade_manual":
		return s.handleGradeManual(ctx, args)
	case "omr_rectify":
		return s.handleRectify(args)
	case "omr_report":
		return s.handleReport(ctx, args)

	// Answer keys
	case "omr_normalize_key":
		return s.handleNormalizeKey(args)
	case "omr_save_key":
		return s.handleSaveKey(ctx, args)
	case "omr_get_key":
		return s.handleGetKey(ctx, args)
	case "omr_list_subjects":
		return s.handleListSubjects(ctx, args)

	// Layouts
	case "omr_templates":
		return s.handleTemplates()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments. Missing arguments decode as an
// empty object.
func unmarshalArgs(args jsoniter.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// cornerPoints accepts corners either as "x,y;x,y;x,y;x,y" or as an array of
// {x, y} objects.
type cornerPoints []geometry.Point

func (c *cornerPoints) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		pts, err := geometry.ParsePoints(s)
		if err != nil {
			return err
		}
		*c = pts
		return nil
	}
	var pts []geometry.Point
	if err := json.Unmarshal(data, &pts); err != nil {
		return err
	}
	*c = pts
	return nil
}

// === Grading Handlers ===

type gradeArgs struct {
	Path         string       `json:"path"`
	Points       cornerPoints `json:"points"`
	Template     string       `json:"template"`
	AnswerKey    string       `json:"answer_key"`
	Owner        string       `json:"owner"`
	Subject      string       `json:"subject"`
	IncludeImage *bool        `json:"include_image"`
}

type gradeResult struct {
	*omr.Result
	KeySource string                `json:"key_source"`
	Image     *imaging.EncodedImage `json:"annotated_image,omitempty"`
}

func (s *Server) handleGradeAuto(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a gradeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	a.Points = nil
	return s.gradeAndEncode(ctx, a)
}

func (s *Server) handleGradeManual(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a gradeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Points) == 0 {
		return nil, fmt.Errorf("points are required")
	}
	return s.gradeAndEncode(ctx, a)
}

func (s *Server) gradeAndEncode(ctx context.Context, a gradeArgs) (*gradeResult, error) {
	res, source, err := s.grade(ctx, a)
	if err != nil {
		return nil, err
	}

	out := &gradeResult{Result: res, KeySource: source}
	if a.IncludeImage == nil || *a.IncludeImage {
		out.Image, err = imaging.EncodeBase64(res.Annotated, imaging.FormatJPEG)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// grade runs the pipeline in manual mode when corner points are given and in
// automatic mode otherwise. It reports where the answer key came from.
func (s *Server) grade(ctx context.Context, a gradeArgs) (*omr.Result, string, error) {
	raw, err := s.loadPhoto(a.Path)
	if err != nil {
		return nil, "", err
	}
	// Grading is the photo's last use; a rectify preview may have cached it.
	defer s.cache.Evict(a.Path)

	req := omr.Request{Template: a.Template, AnswerKey: a.AnswerKey}
	source := "request"
	if req.AnswerKey == "" {
		source = "default"
		if a.Subject != "" {
			key, err := s.savedKey(ctx, a.Owner, a.Subject, a.Template)
			if err != nil {
				return nil, "", err
			}
			req.AnswerKey = key
			source = "saved"
		}
	}

	var res *omr.Result
	if len(a.Points) > 0 {
		res, err = s.engine.GradeManual(ctx, raw, a.Points, req)
	} else {
		res, err = s.engine.GradeAuto(ctx, raw, req)
	}
	if err != nil {
		return nil, "", err
	}
	return res, source, nil
}

func (s *Server) loadPhoto(path string) (image.Image, error) {
	if path == "" {
		return nil, &omr.Error{Kind: omr.KindInvalidInput, Message: "path is required"}
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, &omr.Error{Kind: omr.KindInvalidInput, Message: "could not read photo", Cause: err}
	}
	return img, nil
}

type rectifyArgs struct {
	Path        string       `json:"path"`
	Points      cornerPoints `json:"points"`
	GridSpacing int          `json:"grid_spacing"`
	GridColor   string       `json:"grid_color"`
}

func (s *Server) handleRectify(args jsoniter.RawMessage) (interface{}, error) {
	var a rectifyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	raw, err := s.loadPhoto(a.Path)
	if err != nil {
		return nil, err
	}

	var canonical image.Image
	if len(a.Points) > 0 {
		canonical, err = s.engine.RectifyManual(raw, a.Points)
	} else {
		canonical, err = s.engine.RectifyAuto(raw)
	}
	if err != nil {
		return nil, err
	}

	if a.GridSpacing > 0 {
		var c color.Color = imaging.DefaultGridColor
		if a.GridColor != "" {
			if c, err = imaging.ParseHexColor(a.GridColor); err != nil {
				return nil, err
			}
		}
		canonical = imaging.GridOverlay(canonical, a.GridSpacing, c)
	}
	return imaging.EncodeBase64(canonical, imaging.FormatJPEG)
}

type reportArgs struct {
	gradeArgs
	Title      string `json:"title"`
	OutputPath string `json:"output_path"`
}

type reportResult struct {
	RunID      string `json:"run_id"`
	Score      string `json:"score"`
	Path       string `json:"path,omitempty"`
	Bytes      int    `json:"bytes"`
	PDFBase64  string `json:"pdf_base64,omitempty"`
	MimeType   string `json:"mime_type"`
	KeySource  string `json:"key_source"`
	HeaderText string `json:"header,omitempty"`
}

func (s *Server) handleReport(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a reportArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	res, source, err := s.grade(ctx, a.gradeArgs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, res, report.Options{Title: a.Title, Subject: a.Subject}); err != nil {
		return nil, err
	}

	out := &reportResult{
		RunID:      res.RunID,
		Score:      fmt.Sprintf("%d/%d", res.Stats.Correct, res.Stats.Total),
		Bytes:      buf.Len(),
		MimeType:   "application/pdf",
		KeySource:  source,
		HeaderText: res.Header,
	}
	if a.OutputPath != "" {
		if err := os.WriteFile(a.OutputPath, buf.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
		out.Path = a.OutputPath
		return out, nil
	}
	out.PDFBase64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	return out, nil
}

// === Answer Key Handlers ===

type keyArgs struct {
	Owner     string `json:"owner"`
	Subject   string `json:"subject"`
	Template  string `json:"template"`
	AnswerKey string `json:"answer_key"`
}

type normalizedKey struct {
	Template      string `json:"template"`
	QuestionCount int    `json:"question_count"`
	Key           string `json:"key"`
	Answered      int    `json:"answered"`
}

// questionCount returns the question count of the named layout.
func (s *Server) questionCount(name string) (string, int, error) {
	if name == "" {
		name = omr.DefaultTemplate
	}
	l, ok := s.engine.Registry().Layout(name)
	if !ok {
		return "", 0, &omr.Error{Kind: omr.KindInvalidInput, Message: "unknown template " + name}
	}
	return name, l.QuestionCount, nil
}

func (s *Server) handleNormalizeKey(args jsoniter.RawMessage) (interface{}, error) {
	var a keyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	name, n, err := s.questionCount(a.Template)
	if err != nil {
		return nil, err
	}
	key := answerkey.Normalize(a.AnswerKey, n)
	return &normalizedKey{Template: name, QuestionCount: n, Key: key, Answered: len(key)}, nil
}

func (s *Server) handleSaveKey(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a keyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	_, n, err := s.questionCount(a.Template)
	if err != nil {
		return nil, err
	}
	return s.keys.Upsert(ctx, keystore.SavedKey{
		Owner:         a.Owner,
		Subject:       a.Subject,
		QuestionCount: n,
		Key:           a.AnswerKey,
	})
}

func (s *Server) handleGetKey(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a keyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	_, n, err := s.questionCount(a.Template)
	if err != nil {
		return nil, err
	}
	return s.keys.Get(ctx, a.Owner, a.Subject, n)
}

// savedKey fetches the key string saved for a grading request.
func (s *Server) savedKey(ctx context.Context, owner, subject, tpl string) (string, error) {
	_, n, err := s.questionCount(tpl)
	if err != nil {
		return "", err
	}
	k, err := s.keys.Get(ctx, owner, subject, n)
	if errors.Is(err, keystore.ErrNotFound) {
		return "", &omr.Error{Kind: omr.KindInvalidInput, Message: fmt.Sprintf("no key saved for subject %q", subject), Cause: err}
	}
	if err != nil {
		return "", err
	}
	return k.Key, nil
}

type subjectList struct {
	Owner         string             `json:"owner"`
	QuestionCount int                `json:"question_count"`
	Subjects      []keystore.Subject `json:"subjects"`
}

func (s *Server) handleListSubjects(ctx context.Context, args jsoniter.RawMessage) (interface{}, error) {
	var a keyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	_, n, err := s.questionCount(a.Template)
	if err != nil {
		return nil, err
	}
	subjects, err := s.keys.ListSubjects(ctx, a.Owner, n)
	if err != nil {
		return nil, err
	}
	if subjects == nil {
		subjects = []keystore.Subject{}
	}
	return &subjectList{Owner: a.Owner, QuestionCount: n, Subjects: subjects}, nil
}

// === Layout Handlers ===

type templateInfo struct {
	Name          string          `json:"name"`
	QuestionCount int             `json:"question_count"`
	Options       []string        `json:"options"`
	Slots         int             `json:"slots"`
	Header        image.Rectangle `json:"header"`
	Width         int             `json:"canonical_width"`
	Height        int             `json:"canonical_height"`
}

func (s *Server) handleTemplates() (interface{}, error) {
	w, h := s.engine.CanonicalSize()
	reg := s.engine.Registry()
	names := reg.Names()
	out := make([]templateInfo, 0, len(names))
	for _, name := range names {
		tpl, err := reg.Get(name)
		if err != nil {
			return nil, &omr.Error{Kind: omr.KindConfiguration, Message: "template " + name + " could not be loaded", Cause: err}
		}
		out = append(out, templateInfo{
			Name:          tpl.Name,
			QuestionCount: tpl.QuestionCount,
			Options:       tpl.Options,
			Slots:         len(tpl.Slots),
			Header:        tpl.Header,
			Width:         w,
			Height:        h,
		})
	}
	return out, nil
}
