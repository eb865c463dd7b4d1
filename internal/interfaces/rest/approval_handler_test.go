package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/formsage/backend/internal/application/services"
	"github.com/formsage/backend/internal/domain/models"
	"github.com/formsage/backend/internal/interfaces/rest"
	"github.com/formsage/backend/pkg/auth"
	"github.com/formsage/backend/pkg/constants"
	appErrors "github.com/formsage/backend/pkg/errors"
)

// MockApprovalService is a mock implementation of the ApprovalService
type MockApprovalService struct {
	mock.Mock
}

func (m *MockApprovalService) RecordDecision(ctx context.Context, submissionID string, stepIndex int, outcome services.DecisionOutcome, actorIdentity, reason string, isAdmin bool) (*models.Submission, error) {
	args := m.Called(ctx, submissionID, stepIndex, outcome, actorIdentity, reason, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Submission), args.Error(1)
}

func (m *MockApprovalService) GetPendingForApprover(ctx context.Context, approverIdentity string) ([]*models.Submission, error) {
	args := m.Called(ctx, approverIdentity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Submission), args.Error(1)
}

func decisionContext(w *httptest.ResponseRecorder, user *auth.UserSession, submissionID string, body rest.DecisionRequest) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	if user != nil {
		c.Set(constants.ContextKeyUser, *user)
	}
	jsonBytes, _ := json.Marshal(body)
	c.Request = httptest.NewRequest("POST", "/approvals/"+submissionID+"/approve", bytes.NewBuffer(jsonBytes))
	c.Params = gin.Params{{Key: "submissionId", Value: submissionID}}
	return c
}

func TestApprovalHandler_Approve(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := rest.NewApprovalHandler(mockService)

		w := httptest.NewRecorder()
		user := &auth.UserSession{ID: "u1", Name: "Manager", Email: "manager@example.com"}
		c := decisionContext(w, user, "sub-1", rest.DecisionRequest{StepIndex: 0, Reason: "looks good"})

		approved := &models.Submission{ID: "sub-1", Status: models.SubmissionApproved}
		mockService.On("RecordDecision", mock.Anything, "sub-1", 0, services.DecisionApprove,
			"manager@example.com", "looks good", false).Return(approved, nil).Once()

		handler.Approve(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Submission approved", resp[constants.FieldMessage])
		mockService.AssertExpectations(t)
	})

	t.Run("Not Current Approver", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := rest.NewApprovalHandler(mockService)

		w := httptest.NewRecorder()
		user := &auth.UserSession{ID: "u2", Email: "bystander@example.com"}
		c := decisionContext(w, user, "sub-1", rest.DecisionRequest{StepIndex: 0})

		mockService.On("RecordDecision", mock.Anything, "sub-1", 0, services.DecisionApprove,
			"bystander@example.com", "", false).
			Return(nil, appErrors.NewPermissionError("decide", "submission sub-1")).Once()

		handler.Approve(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Stale Step", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := rest.NewApprovalHandler(mockService)

		w := httptest.NewRecorder()
		user := &auth.UserSession{ID: "u1", Email: "manager@example.com"}
		c := decisionContext(w, user, "sub-1", rest.DecisionRequest{StepIndex: 0})

		mockService.On("RecordDecision", mock.Anything, "sub-1", 0, services.DecisionApprove,
			"manager@example.com", "", false).
			Return(nil, appErrors.NewInvalidTransitionError("sub-1", "decision targets step 0 but submission is at step 1")).Once()

		handler.Approve(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Not Authenticated", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := rest.NewApprovalHandler(mockService)

		w := httptest.NewRecorder()
		c := decisionContext(w, nil, "sub-1", rest.DecisionRequest{})

		handler.Approve(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "RecordDecision")
	})
}

func TestApprovalHandler_Reject(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockService := new(MockApprovalService)
	handler := rest.NewApprovalHandler(mockService)

	w := httptest.NewRecorder()
	user := &auth.UserSession{ID: "admin", Email: "admin@example.com", IsAdmin: true}
	c := decisionContext(w, user, "sub-2", rest.DecisionRequest{StepIndex: 1, Reason: "over budget"})

	rejected := &models.Submission{ID: "sub-2", Status: models.SubmissionRejected}
	mockService.On("RecordDecision", mock.Anything, "sub-2", 1, services.DecisionReject,
		"admin@example.com", "over budget", true).Return(rejected, nil).Once()

	handler.Reject(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestApprovalHandler_GetPending(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Own Queue", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := rest.NewApprovalHandler(mockService)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set(constants.ContextKeyUser, auth.UserSession{ID: "u1", Email: "manager@example.com"})
		c.Request = httptest.NewRequest("GET", "/approvals/pending", nil)

		pending := []*models.Submission{{ID: "sub-1", Status: models.SubmissionInReview}}
		mockService.On("GetPendingForApprover", mock.Anything, "manager@example.com").Return(pending, nil).Once()

		handler.GetPending(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string][]models.Submission
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp["submissions"], 1)
		mockService.AssertExpectations(t)
	})

	t.Run("Admin Inspects Another Queue", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := rest.NewApprovalHandler(mockService)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set(constants.ContextKeyUser, auth.UserSession{ID: "admin", Email: "admin@example.com", IsAdmin: true})
		c.Request = httptest.NewRequest("GET", "/approvals/pending?approver=cfo@example.com", nil)

		mockService.On("GetPendingForApprover", mock.Anything, "cfo@example.com").
			Return([]*models.Submission{}, nil).Once()

		handler.GetPending(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Non-Admin Override Ignored", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := rest.NewApprovalHandler(mockService)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set(constants.ContextKeyUser, auth.UserSession{ID: "u1", Email: "manager@example.com"})
		c.Request = httptest.NewRequest("GET", "/approvals/pending?approver=cfo@example.com", nil)

		mockService.On("GetPendingForApprover", mock.Anything, "manager@example.com").
			Return([]*models.Submission{}, nil).Once()

		handler.GetPending(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})
}
