package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func intProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": desc}
}

func boolProp(desc string, def bool) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": desc, "default": def}
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// sourceProp selects which frame manager a frame tool reads from.
var sourceProp = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"single", "folder"},
	"default":     "single",
	"description": "Frame to operate on: the single selected frame or the current folder frame",
}

var precisionProp = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"float64", "float32", "uint16", "uint8"},
	"description": "Sample type of .dat grids (little-endian). Defaults to the configured precision",
}

var regionProp = map[string]interface{}{
	"type":        "object",
	"description": "Optional region of interest; the whole frame when omitted",
	"properties": map[string]interface{}{
		"x":      intProp("Left edge (0-based)"),
		"y":      intProp("Top edge (0-based)"),
		"width":  intProp("Region width in pixels"),
		"height": intProp("Region height in pixels"),
	},
	"required": []string{"x", "y", "width", "height"},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Single Frame
		{
			Name:        "frame_open",
			Description: "Open a frame file as the single selected frame. Standard images (PNG, JPEG, GIF, BMP, TIFF) are shown as stored; .dat and .dat.zst grids are decoded to an 8-bit grayscale PNG. Replaces and releases the previous frame.",
			InputSchema: object(map[string]interface{}{
				"path":          stringProp("Absolute path to the frame file"),
				"rows":          intProp("Grid height for .dat frames"),
				"cols":          intProp("Grid width for .dat frames"),
				"precision":     precisionProp,
				"include_image": boolProp("Return the rendered frame as a data URI", false),
			}, "path"),
		},
		{
			Name:        "frame_close",
			Description: "Close the single selected frame and release its display handle.",
			InputSchema: object(map[string]interface{}{}),
		},
		{
			Name:        "frame_info",
			Description: "Describe the current frame: name, MD5, kind, grid shape, display handle and recorded crop.",
			InputSchema: object(map[string]interface{}{
				"source":        sourceProp,
				"include_image": boolProp("Return the rendered frame as a data URI", false),
			}),
		},

		// Region Operations
		{
			Name:        "frame_crop",
			Description: "Crop a region of interest from the current frame and return it as base64 PNG, optionally zoomed. On the single frame the region is recorded and sent as cropData with the next inference.",
			InputSchema: object(map[string]interface{}{
				"source": sourceProp,
				"x":      intProp("Left edge (0-based)"),
				"y":      intProp("Top edge (0-based)"),
				"width":  intProp("Region width in pixels"),
				"height": intProp("Region height in pixels"),
				"scale": map[string]interface{}{
					"type":        "number",
					"description": "Zoom factor applied to the crop. Default 1.0",
					"default":     1.0,
				},
				"record": boolProp("Record the region for inference (single frame only)", true),
			}, "x", "y", "width", "height"),
		},

		// Analysis
		{
			Name:        "frame_probe",
			Description: "Read one pixel of the current frame: hex, RGB, HSL and intensity. For .dat frames the raw grid value is included.",
			InputSchema: object(map[string]interface{}{
				"source": sourceProp,
				"x":      intProp("Column (0-based)"),
				"y":      intProp("Row (0-based)"),
			}, "x", "y"),
		},
		{
			Name:        "frame_histogram",
			Description: "Grey-level histogram of the current frame or a region of it.",
			InputSchema: object(map[string]interface{}{
				"source": sourceProp,
				"bins": map[string]interface{}{
					"type":        "integer",
					"description": "Number of bins; must divide 256. Default 256",
					"default":     256,
				},
				"region": regionProp,
			}),
		},
		{
			Name:        "frame_features",
			Description: "Texture statistics of the current frame or a region: mean, variance, skewness, kurtosis, entropy, smoothness, min and max.",
			InputSchema: object(map[string]interface{}{
				"source": sourceProp,
				"region": regionProp,
			}),
		},
		{
			Name:        "frame_colorize",
			Description: "Render the current frame through a false-colour map. Returns a new display handle that must be released with handle_release.",
			InputSchema: object(map[string]interface{}{
				"source": sourceProp,
				"colormap": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"gray", "hot", "magma", "viridis"},
					"description": "Colormap name. Default viridis",
					"default":     "viridis",
				},
				"include_image": boolProp("Return the rendered image as a data URI", true),
			}),
		},

		// Decoding and Handles
		{
			Name:        "dat_decode",
			Description: "Decode a raw .dat grid on a background worker without selecting it. Give either a file path or base64 data. A grid that cannot be decoded yields decoded=false; the returned handle must be released with handle_release.",
			InputSchema: object(map[string]interface{}{
				"path":          stringProp("Absolute path to a .dat or .dat.zst file"),
				"data_base64":   stringProp("Raw little-endian samples, base64 encoded"),
				"rows":          intProp("Grid height"),
				"cols":          intProp("Grid width"),
				"precision":     precisionProp,
				"timeout_ms":    intProp("Give up waiting after this many milliseconds. The decode itself keeps running"),
				"include_image": boolProp("Return the rendered frame as a data URI", false),
			}, "rows", "cols"),
		},
		{
			Name:        "handle_fetch",
			Description: "Resolve a live display handle to a data URI.",
			InputSchema: object(map[string]interface{}{
				"url": stringProp("Handle URL, e.g. blob:frame-console/3"),
			}, "url"),
		},
		{
			Name:        "handle_release",
			Description: "Revoke a display handle. Releasing an unknown handle is a no-op.",
			InputSchema: object(map[string]interface{}{
				"url": stringProp("Handle URL"),
			}, "url"),
		},

		// Folder Navigation
		{
			Name:        "folder_open",
			Description: "Open a folder of frames (.jpg .jpeg .png .bmp .gif .tif .tiff .dat .dat.zst), sorted in natural order, and show the first one.",
			InputSchema: object(map[string]interface{}{
				"path":          stringProp("Absolute path to the folder"),
				"rows":          intProp("Grid height shared by every .dat frame"),
				"cols":          intProp("Grid width shared by every .dat frame"),
				"precision":     precisionProp,
				"include_image": boolProp("Return the rendered frame as a data URI", false),
			}, "path", "rows", "cols"),
		},
		{
			Name:        "folder_next",
			Description: "Show the next frame of the open folder. Stays on the last frame at the end.",
			InputSchema: object(map[string]interface{}{
				"include_image": boolProp("Return the rendered frame as a data URI", false),
			}),
		},
		{
			Name:        "folder_prev",
			Description: "Show the previous frame of the open folder. Stays on the first frame at the start.",
			InputSchema: object(map[string]interface{}{
				"include_image": boolProp("Return the rendered frame as a data URI", false),
			}),
		},
		{
			Name:        "folder_goto",
			Description: "Show the frame at a 0-based index. An index outside the folder clears the current frame.",
			InputSchema: object(map[string]interface{}{
				"index":         intProp("Frame index (0-based)"),
				"include_image": boolProp("Return the rendered frame as a data URI", false),
			}, "index"),
		},
		{
			Name:        "folder_close",
			Description: "Close the folder and release its frame.",
			InputSchema: object(map[string]interface{}{}),
		},

		// Inference Backend
		{
			Name:        "infer",
			Description: "Send the current frame to the inference backend with its MD5, grid shape and recorded crop. Returns text results, chart values and a handle to the processed image, if any. The processed image is revoked by the next infer and by frame_close; release it earlier with handle_release.",
			InputSchema: object(map[string]interface{}{
				"source":    sourceProp,
				"algorithm": stringProp("Algorithm name understood by the backend"),
				"use_crop":  boolProp("Send the recorded crop region as cropData", true),
			}, "algorithm"),
		},
		{
			Name:        "infer_folder",
			Description: "Ask the backend to process a folder on its own file system. Defaults to the open folder.",
			InputSchema: object(map[string]interface{}{
				"folder_path": stringProp("Folder path as seen by the backend"),
				"algorithm":   stringProp("Algorithm name"),
			}, "algorithm"),
		},
		{
			Name:        "crop_config_get",
			Description: "Fetch the backend crop configuration (x, y, width, height, lr).",
			InputSchema: object(map[string]interface{}{}),
		},
		{
			Name:        "crop_config_put",
			Description: "Replace the backend crop configuration.",
			InputSchema: object(map[string]interface{}{
				"x":      intProp("Left edge"),
				"y":      intProp("Top edge"),
				"width":  intProp("Width"),
				"height": intProp("Height"),
				"lr": map[string]interface{}{
					"type":        "number",
					"description": "Learning rate",
				},
			}, "x", "y", "width", "height", "lr"),
		},

		// Backend Logs
		{
			Name:        "logs_connect",
			Description: "Connect to the backend log stream (server-sent events). Clears kept records; does nothing when already connected.",
			InputSchema: object(map[string]interface{}{}),
		},
		{
			Name:        "logs_disconnect",
			Description: "Disconnect from the backend log stream and cancel reconnects.",
			InputSchema: object(map[string]interface{}{}),
		},
		{
			Name:        "logs_list",
			Description: "List kept log records newer than since_id.",
			InputSchema: object(map[string]interface{}{
				"since_id": intProp("Only records with a greater id. Default 0"),
				"level":    stringProp("Only records of this level (e.g. ERROR)"),
				"limit":    intProp("Return at most the newest N records"),
			}),
		},
		{
			Name:        "logs_clear",
			Description: "Drop the kept log records.",
			InputSchema: object(map[string]interface{}{}),
		},

		// Status
		{
			Name:        "console_status",
			Description: "Summarize the console: selected frame, folder position, log stream state, live handles and the current notification.",
			InputSchema: object(map[string]interface{}{}),
		},
	}
}
