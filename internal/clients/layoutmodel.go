/**
 * Layout model client.
 *
 * HTTP client for the external layout-detection model service: posts a
 * page image, receives candidate boxes with labels and confidence
 * scores. The model is a black box; its output is cleaned up by the
 * layout disambiguator, never trusted directly.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docfold/blockparse-worker/internal/layout"
	"github.com/docfold/blockparse-worker/internal/logging"
)

// LayoutModelClient calls the layout-detection model service. It
// implements layout.Detector.
type LayoutModelClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// detectRequest is the model service's detection request
type detectRequest struct {
	Image  string `json:"image"` // base64 encoded PNG
	Format string `json:"format"`
}

// detectResponse is the model service's detection response
type detectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		Detections []struct {
			Box        [4]float64 `json:"box"` // x1,y1,x2,y2
			Label      string     `json:"label"`
			Confidence float64    `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

// NewLayoutModelClient creates a client for the model service
func NewLayoutModelClient(baseURL string) *LayoutModelClient {
	return &LayoutModelClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // model inference can take a while per page
		},
		logger: logging.NewLogger("LayoutModelClient"),
	}
}

// Detect returns the model's candidate boxes for one page image. An
// empty list means the model found no layout, which is not an error.
func (c *LayoutModelClient) Detect(ctx context.Context, pageImage image.Image) ([]layout.Detection, error) {
	var imgBuf bytes.Buffer
	if err := png.Encode(&imgBuf, pageImage); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}

	reqBody, err := json.Marshal(detectRequest{
		Image:  base64.StdEncoding.EncodeToString(imgBuf.Bytes()),
		Format: "base64",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/layout/detect", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to layout model failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("layout model returned status %d: %s", resp.StatusCode, string(body))
	}

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse detection response: %w", err)
	}
	if !detResp.Success {
		return nil, fmt.Errorf("layout model operation failed: %s", detResp.Message)
	}

	detections := make([]layout.Detection, 0, len(detResp.Data.Detections))
	for _, d := range detResp.Data.Detections {
		conf := d.Confidence
		if conf < 0 || conf > 1 {
			c.logger.Warn("Clamping out-of-range confidence", "label", d.Label, "confidence", conf)
			conf = clamp01(conf)
		}
		detections = append(detections, layout.Detection{
			Box:        layout.Box{X1: d.Box[0], Y1: d.Box[1], X2: d.Box[2], Y2: d.Box[3]},
			Label:      mapLabel(d.Label),
			Confidence: conf,
		})
	}

	c.logger.Debug("Detection complete", "detections", len(detections))

	return detections, nil
}

// mapLabel maps the model's label set onto block types; unknown labels
// default to Text for conservative downstream handling
func mapLabel(label string) layout.BlockType {
	switch label {
	case "Text":
		return layout.BlockText
	case "Title":
		return layout.BlockTitle
	case "List":
		return layout.BlockList
	case "Table":
		return layout.BlockTable
	case "Figure":
		return layout.BlockFigure
	default:
		return layout.BlockText
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
