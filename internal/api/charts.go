package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mitchellh/mapstructure"

	"github.com/hashicorp-forge/chartpress/internal/server"
	"github.com/hashicorp-forge/chartpress/pkg/datawrapper"
	"github.com/hashicorp-forge/chartpress/pkg/gsheets"
)

// CreateChartRequest contains the fields allowed in the create_chart_id POST
// request.
type CreateChartRequest struct {
	FileURL   string `json:"file_url"`
	ChartType string `json:"chart_type"`
	Title     string `json:"title"`
}

func (req CreateChartRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.FileURL, validation.Required),
		validation.Field(&req.ChartType, validation.Required),
		validation.Field(&req.Title, validation.Required),
	)
}

// CreateChartResponse is returned after a chart is created and its data
// uploaded. The caller must hold on to ChartID and supply it to
// update_chart: the service keeps no state between the two phases.
type CreateChartResponse struct {
	Status  string `json:"status"`
	ChartID string `json:"chart_id"`
	Message string `json:"message"`
}

// UpdateChartRequest contains the fields allowed in the update_chart POST
// request. CustomColors accepts either a JSON object or a string holding
// encoded JSON.
type UpdateChartRequest struct {
	ChartID      string      `json:"chart_id"`
	SourceName   string      `json:"source_name"`
	Intro        string      `json:"intro"`
	Byline       string      `json:"byline"`
	SourceURL    string      `json:"source_url"`
	CustomColors interface{} `json:"custom_colors"`
}

func (req UpdateChartRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ChartID, validation.Required),
		validation.Field(&req.SourceName, validation.Required),
	)
}

// UpdateChartResponse is returned after metadata is merged and the chart
// published.
type UpdateChartResponse struct {
	Status   string `json:"status"`
	ChartID  string `json:"chart_id"`
	ChartURL string `json:"chart_url"`
	Message  string `json:"message"`
}

// CreateChartHandler handles phase 1 of the publishing workflow: fetch the
// source table, create the remote chart, upload the data, return the chart
// id.
func CreateChartHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// The credential is checked before any network activity.
		if srv.Config.Datawrapper.Token == "" {
			respondError(w, srv.Logger, http.StatusInternalServerError,
				"Datawrapper API token not configured")
			return
		}

		var req CreateChartRequest
		if err := decodeRequest(r, &req); err != nil {
			srv.Logger.Error("error decoding create chart request", "error", err)
			respondError(w, srv.Logger, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := req.Validate(); err != nil {
			respondError(w, srv.Logger, http.StatusBadRequest,
				requiredFieldsMessage(err))
			return
		}

		if !gsheets.IsSupportedURL(req.FileURL) {
			respondError(w, srv.Logger, http.StatusBadRequest,
				"Invalid file URL. Must be a Google Sheets URL")
			return
		}

		table, err := srv.Sheets.Fetch(r.Context(), req.FileURL)
		if err != nil {
			srv.Logger.Error("error downloading or parsing file",
				"url", req.FileURL, "error", err)
			respondError(w, srv.Logger, http.StatusBadRequest,
				fmt.Sprintf("Error processing file: %v", err))
			return
		}

		csvData, err := table.MarshalCSV()
		if err != nil {
			srv.Logger.Error("error serializing table", "error", err)
			respondError(w, srv.Logger, http.StatusInternalServerError,
				fmt.Sprintf("Internal server error: %v", err))
			return
		}

		chartID, err := srv.Charts.CreateChart(r.Context(), req.ChartType, req.Title)
		if err != nil {
			srv.Logger.Error("error creating chart", "error", err)
			respondError(w, srv.Logger, http.StatusInternalServerError,
				fmt.Sprintf("Error calling Datawrapper API: %v", err))
			return
		}

		if err := srv.Charts.UploadData(r.Context(), chartID, csvData); err != nil {
			// No compensation: the created chart is left orphaned at the
			// provider. Log the id so operators can clean up.
			srv.Logger.Warn("data upload failed after chart creation, chart orphaned",
				"chart_id", chartID, "error", err)
			respondError(w, srv.Logger, http.StatusInternalServerError,
				fmt.Sprintf("Error calling Datawrapper API: %v", err))
			return
		}

		respondJSON(w, srv.Logger, http.StatusOK, CreateChartResponse{
			Status:  "success",
			ChartID: chartID,
			Message: "Chart created and data uploaded successfully",
		})
	})
}

// UpdateChartHandler handles phase 2 of the publishing workflow: merge
// descriptive metadata (and color overrides, when given) into the chart and
// publish it.
func UpdateChartHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if srv.Config.Datawrapper.Token == "" {
			respondError(w, srv.Logger, http.StatusInternalServerError,
				"Datawrapper API token not configured")
			return
		}

		var req UpdateChartRequest
		if err := decodeRequest(r, &req); err != nil {
			srv.Logger.Error("error decoding update chart request", "error", err)
			respondError(w, srv.Logger, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := req.Validate(); err != nil {
			respondError(w, srv.Logger, http.StatusBadRequest,
				requiredFieldsMessage(err))
			return
		}

		customColors, err := parseCustomColors(req.CustomColors)
		if err != nil {
			srv.Logger.Error("error parsing custom colors", "error", err)
			respondError(w, srv.Logger, http.StatusBadRequest,
				"Invalid custom_colors JSON format")
			return
		}

		meta := datawrapper.Metadata{
			Intro:        req.Intro,
			Byline:       req.Byline,
			SourceName:   req.SourceName,
			SourceURL:    req.SourceURL,
			CustomColors: customColors,
		}

		if err := srv.Charts.UpdateMetadata(r.Context(), req.ChartID, meta); err != nil {
			srv.Logger.Error("error updating chart metadata",
				"chart_id", req.ChartID, "error", err)
			respondError(w, srv.Logger, http.StatusInternalServerError,
				fmt.Sprintf("Error calling Datawrapper API: %v", err))
			return
		}

		if err := srv.Charts.Publish(r.Context(), req.ChartID); err != nil {
			srv.Logger.Error("error publishing chart",
				"chart_id", req.ChartID, "error", err)
			respondError(w, srv.Logger, http.StatusInternalServerError,
				fmt.Sprintf("Error calling Datawrapper API: %v", err))
			return
		}

		respondJSON(w, srv.Logger, http.StatusOK, UpdateChartResponse{
			Status:   "success",
			ChartID:  req.ChartID,
			ChartURL: srv.Charts.PublicURL(req.ChartID),
			Message:  "Chart metadata updated and published successfully",
		})
	})
}

// parseCustomColors normalizes the custom_colors field into a map of category
// to color. A string value must hold encoded JSON; an object value is coerced
// directly. Absent or empty values mean no overrides.
func parseCustomColors(raw interface{}) (map[string]string, error) {
	if raw == nil {
		return nil, nil
	}

	var decoded interface{}
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("custom_colors is not valid JSON: %w", err)
		}
	default:
		decoded = raw
	}

	colors := make(map[string]string)
	if err := mapstructure.Decode(decoded, &colors); err != nil {
		return nil, fmt.Errorf("custom_colors must map categories to color strings: %w", err)
	}
	if len(colors) == 0 {
		return nil, nil
	}
	return colors, nil
}
