package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Response is the envelope of every /analyze-video answer
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// AnalysisData is the payload of a successful analysis
type AnalysisData struct {
	AveragedEmotions map[string]float64 `json:"averaged_emotions"`
}

// APIError is a failure that maps directly onto an HTTP status
type APIError struct {
	Code    int
	Message string
}

func (e APIError) Error() string {
	return fmt.Sprintf("%v %v", e.Code, e.Message)
}

func errNoFile() APIError {
	return APIError{http.StatusBadRequest, "No file provided"}
}

func errNoFilename() APIError {
	return APIError{http.StatusBadRequest, "No file selected"}
}

func errTooLarge(limit string) APIError {
	return APIError{http.StatusRequestEntityTooLarge, fmt.Sprintf("File size exceeds limit (%s)", limit)}
}

func errInternal(err error) APIError {
	return APIError{http.StatusInternalServerError, err.Error()}
}

func writeError(c *gin.Context, e APIError) {
	c.AbortWithStatusJSON(e.Code, Response{
		Status:  statusError,
		Message: e.Message,
		Data:    nil,
	})
}

func writeSuccess(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Status:  statusSuccess,
		Message: message,
		Data:    data,
	})
}
