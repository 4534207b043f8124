package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"trashcan-monitoring/models"
)

// ingestPayload is the raw ingestion body. Sensor firmware has shipped two
// generations of field names per field; both are accepted here and
// normalized before the payload reaches the recorder.
type ingestPayload struct {
	TrashcanID *int64 `json:"trashcan_id"`

	ImageName   string `json:"image_name"`
	Filename    string `json:"filename"`
	SourceImage string `json:"source_image"`

	ImagePath string `json:"image_path"`
	SavedPath string `json:"saved_path"`

	DetectedAt *time.Time `json:"detected_at"`

	TotalObjects *int `json:"total_objects"`
	ObjectCount  *int `json:"object_count"`

	Predictions []predictionPayload `json:"predictions"`
	Objects     []predictionPayload `json:"objects"`
}

type predictionPayload struct {
	ClassID    int64           `json:"class_id"`
	ClassName  string          `json:"class_name"`
	Confidence decimal.Decimal `json:"confidence"`
	Box        boxPayload      `json:"box"`
}

type boxPayload struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// normalize resolves the field aliases, current name first.
func (p *ingestPayload) normalize() *models.IngestRequest {
	req := &models.IngestRequest{
		TrashcanID: p.TrashcanID,
		DetectedAt: p.DetectedAt,
	}

	req.ImageName = firstNonEmpty(p.ImageName, p.Filename, p.SourceImage)
	req.ImagePath = firstNonEmpty(p.ImagePath, p.SavedPath)

	req.TotalObjects = p.TotalObjects
	if req.TotalObjects == nil {
		req.TotalObjects = p.ObjectCount
	}

	preds := p.Predictions
	if preds == nil {
		preds = p.Objects
	}
	req.Predictions = make([]models.Prediction, 0, len(preds))
	for _, pred := range preds {
		req.Predictions = append(req.Predictions, models.Prediction{
			ClassID:    pred.ClassID,
			ClassName:  pred.ClassName,
			Confidence: pred.Confidence,
			Box: models.BoundingBox{
				X1: pred.Box.X1,
				Y1: pred.Box.Y1,
				X2: pred.Box.X2,
				Y2: pred.Box.Y2,
			},
		})
	}
	return req
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
