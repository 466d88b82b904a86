package server

import "github.com/Gowithe/scangrade-thai/internal/template"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the answer-sheet photo (PNG, JPEG, GIF or WebP)",
	}
}

func templateProperty() map[string]interface{} {
	names := make([]string, len(template.DefaultLayouts))
	for i, l := range template.DefaultLayouts {
		names[i] = l.Name
	}
	return map[string]interface{}{
		"type":        "string",
		"description": "Sheet layout name (number of questions). Default \"60\"",
		"enum":        names,
		"default":     "60",
	}
}

func answerKeyProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Answer key, one letter A-E per question in order (e.g. \"ABCDA...\"). Other characters are ignored. When empty the saved key for owner/subject or the layout's default key is used",
	}
}

func pointsProperty() map[string]interface{} {
	return map[string]interface{}{
		"description": "Four sheet corners in photo pixel coordinates, in any order. Either \"x,y;x,y;x,y;x,y\" or an array of {x, y} objects",
		"oneOf": []interface{}{
			map[string]interface{}{"type": "string"},
			map[string]interface{}{
				"type":     "array",
				"minItems": 4,
				"maxItems": 4,
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"x": map[string]interface{}{"type": "number"},
						"y": map[string]interface{}{"type": "number"},
					},
					"required": []string{"x", "y"},
				},
			},
		},
	}
}

func ownerProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Owner of the saved key (teacher account id)",
	}
}

func subjectProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Subject name the key is saved under",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Grading
		{
			Name:        "omr_grade_auto",
			Description: "Grade a photographed answer sheet. The sheet outline is found automatically, the marks are read and compared with the answer key. Returns per-question detail, the score and an annotated review image (base64 JPEG).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty(),
					"template":   templateProperty(),
					"answer_key": answerKeyProperty(),
					"owner":      ownerProperty(),
					"subject":    subjectProperty(),
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the annotated review image. Default true",
						"default":     true,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_grade_manual",
			Description: "Grade a photographed answer sheet using four corner points picked by the user. Use this when omr_grade_auto cannot find the sheet outline.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty(),
					"points":     pointsProperty(),
					"template":   templateProperty(),
					"answer_key": answerKeyProperty(),
					"owner":      ownerProperty(),
					"subject":    subjectProperty(),
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the annotated review image. Default true",
						"default":     true,
					},
				},
				"required": []string{"path", "points"},
			},
		},
		{
			Name:        "omr_rectify",
			Description: "Straighten a photographed sheet onto the canonical sheet size without grading it. Uses the given corner points, or finds the outline automatically when none are given. Optionally draws a coordinate grid for checking slot positions.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"points": pointsProperty(),
					"grid_spacing": map[string]interface{}{
						"type":        "integer",
						"description": "Draw a coordinate grid every N canonical pixels. 0 draws none",
						"default":     0,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid colour in hex (#RRGGBB). Default #FF0000",
						"default":     "#FF0000",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "omr_report",
			Description: "Grade a sheet and render the result as a one-page PDF report. The PDF is written to output_path when given, otherwise returned as base64.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":       pathProperty(),
					"points":     pointsProperty(),
					"template":   templateProperty(),
					"answer_key": answerKeyProperty(),
					"owner":      ownerProperty(),
					"subject":    subjectProperty(),
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Report title",
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "File to write the PDF to",
					},
				},
				"required": []string{"path"},
			},
		},

		// Answer keys
		{
			Name:        "omr_normalize_key",
			Description: "Clean an answer key: uppercase it, drop everything except A-E and cut it to the layout's question count.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"answer_key": answerKeyProperty(),
					"template":   templateProperty(),
				},
				"required": []string{"answer_key"},
			},
		},
		{
			Name:        "omr_save_key",
			Description: "Save an answer key under a subject name for later grading. Saving again under the same owner, subject and layout replaces the key.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"owner":      ownerProperty(),
					"subject":    subjectProperty(),
					"template":   templateProperty(),
					"answer_key": answerKeyProperty(),
				},
				"required": []string{"owner", "subject", "answer_key"},
			},
		},
		{
			Name:        "omr_get_key",
			Description: "Fetch the answer key saved under a subject name.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"owner":    ownerProperty(),
					"subject":  subjectProperty(),
					"template": templateProperty(),
				},
				"required": []string{"owner", "subject"},
			},
		},
		{
			Name:        "omr_list_subjects",
			Description: "List the subjects an owner has saved keys for on a layout, most recently updated first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"owner":    ownerProperty(),
					"template": templateProperty(),
				},
				"required": []string{"owner"},
			},
		},

		// Layouts
		{
			Name:        "omr_templates",
			Description: "List the supported sheet layouts with their question count, options and slot count.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
