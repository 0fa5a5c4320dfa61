package controller

import (
	"judgemicro/internal/judge/model"
	"judgemicro/internal/judge/sandbox/engine"
	"judgemicro/internal/judge/sandbox/lang"
	"judgemicro/internal/judge/sandbox/validate"
	"judgemicro/internal/judge/service"
	"judgemicro/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeController handles judge HTTP endpoints.
type JudgeController struct {
	judgeService *service.Service
}

// NewJudgeController creates a new JudgeController.
func NewJudgeController(judgeService *service.Service) *JudgeController {
	return &JudgeController{judgeService: judgeService}
}

// RegisterRoutes mounts the judge API under /judge.
func (h *JudgeController) RegisterRoutes(r gin.IRouter) {
	judge := r.Group("/judge")
	judge.POST("/submit", h.Submit)
	judge.POST("/submit/async", h.SubmitAsync)
	judge.POST("/batch", h.Batch)
	judge.POST("/batch/optimized", h.BatchOptimized)
	judge.GET("/submissions/:id", h.GetSubmission)
	judge.GET("/languages", h.Languages)
	judge.GET("/limits", h.Limits)
	judge.GET("/status", h.ServiceStatus)
	judge.GET("/examples/c", h.ExampleC)
	judge.GET("/examples/cpp", h.ExampleCpp)
	judge.GET("/examples/advanced", h.ExampleAdvanced)
	judge.GET("/examples/error", h.ExampleError)
	judge.GET("/examples/optimized-batch", h.ExampleOptimizedBatch)
}

// Submit judges one submission synchronously.
func (h *JudgeController) Submit(c *gin.Context) {
	var req model.JudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	result, err := h.judgeService.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SubmitAsync enqueues one submission and returns its id.
func (h *JudgeController) SubmitAsync(c *gin.Context) {
	var req model.JudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	submissionID, err := h.judgeService.SubmitAsync(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, AsyncSubmitResponse{
		SubmissionID: submissionID,
		Status:       model.StatusPending,
	})
}

// Batch judges independent submissions concurrently.
func (h *JudgeController) Batch(c *gin.Context) {
	var req model.BatchJudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	result, err := h.judgeService.Batch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// BatchOptimized judges many configs against one compiled submission.
func (h *JudgeController) BatchOptimized(c *gin.Context) {
	var req model.OptimizedBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	result, err := h.judgeService.BatchOptimized(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetSubmission returns the status record for one async submission.
func (h *JudgeController) GetSubmission(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	status, err := h.judgeService.GetSubmission(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// languageDescriptions supplies the human labels the registry does not
// carry.
var languageDescriptions = map[string]string{
	"c":      "C Language",
	"cpp":    "C++ Language",
	"python": "Python Language",
}

// LanguageInfo describes one supported language.
type LanguageInfo struct {
	Language        string   `json:"language"`
	Description     string   `json:"description"`
	Standards       []string `json:"standards,omitempty"`
	DefaultStandard string   `json:"default_standard,omitempty"`
}

// LanguagesResponse lists the supported solve contract.
type LanguagesResponse struct {
	SupportedLanguages []LanguageInfo `json:"supported_languages"`
	ParameterTypes     []string       `json:"parameter_types"`
	FunctionTypes      []string       `json:"function_types"`
}

// AsyncSubmitResponse acknowledges an enqueued submission.
type AsyncSubmitResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
}

// Languages lists registered languages with their standards and the
// parameter and function types the runners understand.
func (h *JudgeController) Languages(c *gin.Context) {
	registry := h.judgeService.Registry()
	infos := make([]LanguageInfo, 0, len(registry.Names()))
	for _, name := range registry.Names() {
		l, err := registry.Lookup(name)
		if err != nil {
			continue
		}
		infos = append(infos, languageInfo(l))
	}
	response.Success(c, LanguagesResponse{
		SupportedLanguages: infos,
		ParameterTypes:     validate.ParameterTypes,
		FunctionTypes:      validate.FunctionTypes,
	})
}

func languageInfo(l lang.Language) LanguageInfo {
	return LanguageInfo{
		Language:        l.Name,
		Description:     languageDescriptions[l.Name],
		Standards:       l.Standards,
		DefaultStandard: l.DefaultStandard,
	}
}

// Limits reports the deployment defaults, the hard maxima and the
// request shape caps.
func (h *JudgeController) Limits(c *gin.Context) {
	response.Success(c, gin.H{
		"default_limits": limitsPayload(h.judgeService.DefaultLimits()),
		"maximum_limits": limitsPayload(engine.MaxLimits),
		"code_limits": gin.H{
			"max_code_length": validate.MaxCodeLength,
			"max_batch_size":  validate.MaxBatchSize,
		},
	})
}

func limitsPayload(l engine.Limits) gin.H {
	return gin.H{
		"compile_timeout":   l.CompileTimeout,
		"execution_timeout": l.ExecutionTimeout,
		"memory_limit":      l.Memory,
		"cpu_limit":         l.CPU,
	}
}

// ServiceStatus runs the health probe and reports service health. The
// response is always 200, the status field carries the result.
func (h *JudgeController) ServiceStatus(c *gin.Context) {
	response.Success(c, h.judgeService.HealthCheck(c.Request.Context()))
}

// ExampleC returns the canned C request example.
func (h *JudgeController) ExampleC(c *gin.Context) {
	response.Success(c, gin.H{
		"description":      "C language judge evaluation request example",
		"example":          exampleC,
		"response_example": exampleResponse,
	})
}

// ExampleCpp returns the canned C++ request example.
func (h *JudgeController) ExampleCpp(c *gin.Context) {
	response.Success(c, gin.H{
		"description":      "C++ language judge evaluation request example",
		"example":          exampleCpp,
		"response_example": exampleResponse,
	})
}

// ExampleAdvanced returns the canned advanced C++ example.
func (h *JudgeController) ExampleAdvanced(c *gin.Context) {
	response.Success(c, gin.H{
		"description":      "C++ advanced judge evaluation example (including vectors and complex data structures)",
		"example":          exampleAdvanced,
		"response_example": exampleResponse,
	})
}

// ExampleError returns the canned compile error response example.
func (h *JudgeController) ExampleError(c *gin.Context) {
	response.Success(c, gin.H{
		"description": "Compilation error response example",
		"example":     exampleError,
	})
}

// ExampleOptimizedBatch returns the canned optimized batch example.
func (h *JudgeController) ExampleOptimizedBatch(c *gin.Context) {
	response.Success(c, gin.H{
		"description": "Optimized batch evaluation example, one compile shared by every test",
		"example":     exampleOptimizedBatch,
		"note":        "All tests run against the same compiled binary inside one container",
	})
}
