package service

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"focusguard/internal/core/breaktimer"
	"focusguard/internal/core/model"
)

// Wire message types accepted on the control endpoint. They mirror the
// message names the popup sends to the background worker.
const (
	MsgGetBreakTimerStatus      = "GET_BREAK_TIMER_STATUS"
	MsgStartWorkTimer           = "START_WORK_TIMER"
	MsgResetWorkTimer           = "RESET_WORK_TIMER"
	MsgStartBreak               = "START_BREAK"
	MsgEndBreak                 = "END_BREAK"
	MsgCancelBreak              = "CANCEL_BREAK"
	MsgCheckBreakTimerThreshold = "CHECK_BREAK_TIMER_THRESHOLD"
	MsgGetBreakSettings         = "GET_BREAK_SETTINGS"
	MsgUpdateBreakSettings      = "UPDATE_BREAK_SETTINGS"
	MsgSetFocusTab              = "SET_FOCUS_TAB"
	MsgClearFocusTab            = "CLEAR_FOCUS_TAB"
	MsgResetAllData             = "RESET_ALL_DATA"
	MsgGetSessionHistory        = "GET_SESSION_HISTORY"
)

type wireMessage struct {
	Type            string               `json:"type"`
	BreakType       string               `json:"breakType,omitempty"`
	DurationMinutes int                  `json:"durationMinutes,omitempty"`
	URL             string               `json:"url,omitempty"`
	Limit           int                  `json:"limit,omitempty"`
	Settings        *model.BreakSettings `json:"settings,omitempty"`
}

type wireStatus struct {
	State               string `json:"state"`
	IsWorkTimerActive   bool   `json:"isWorkTimerActive"`
	IsOnBreak           bool   `json:"isOnBreak"`
	BreakType           string `json:"breakType,omitempty"`
	CurrentWorkTime     int64  `json:"currentWorkTime"`
	WorkTimeThreshold   int64  `json:"workTimeThreshold"`
	IsThresholdExceeded bool   `json:"isThresholdExceeded"`
	BreakRemaining      int64  `json:"breakRemaining,omitempty"`
}

type wireSession struct {
	ID        string `json:"id"`
	StartedAt int64  `json:"startedAt"`
	EndedAt   int64  `json:"endedAt"`
	WorkTime  int64  `json:"workTime"`
	BreakType string `json:"breakType,omitempty"`
}

type wireResponse struct {
	Success  bool                 `json:"success"`
	Error    string               `json:"error,omitempty"`
	Notified bool                 `json:"notified,omitempty"`
	Status   *wireStatus          `json:"status,omitempty"`
	Settings *model.BreakSettings `json:"settings,omitempty"`
	Sessions []wireSession        `json:"sessions,omitempty"`
}

// Handler returns the HTTP surface of the service: a single message
// endpoint plus a health probe.
func (service *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/message", service.handleMessage)
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	return mux
}

func (service *Service) handleMessage(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(writer, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var message wireMessage
	if err := json.NewDecoder(request.Body).Decode(&message); err != nil {
		writeJSON(writer, http.StatusBadRequest, wireResponse{Error: "invalid message body"})
		return
	}

	typed, err := decodeRequest(message)
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, wireResponse{Error: err.Error()})
		return
	}

	response := service.Dispatch(request.Context(), typed)
	service.log.Debug("message dispatched",
		zap.String("type", message.Type),
		zap.Bool("success", response.Success))
	writeJSON(writer, http.StatusOK, encodeResponse(response))
}

func decodeRequest(message wireMessage) (Request, error) {
	switch message.Type {
	case MsgGetBreakTimerStatus:
		return GetStatus{}, nil
	case MsgStartWorkTimer:
		return StartWorkTimer{}, nil
	case MsgResetWorkTimer:
		return ResetWorkTimer{}, nil
	case MsgStartBreak:
		return StartBreak{
			BreakType:       model.BreakType(message.BreakType),
			DurationMinutes: message.DurationMinutes,
		}, nil
	case MsgEndBreak:
		return EndBreak{}, nil
	case MsgCancelBreak:
		return CancelBreak{}, nil
	case MsgCheckBreakTimerThreshold:
		return CheckBreakThreshold{}, nil
	case MsgGetBreakSettings:
		return GetSettings{}, nil
	case MsgUpdateBreakSettings:
		if message.Settings == nil {
			return nil, fmt.Errorf("%s requires settings", MsgUpdateBreakSettings)
		}
		return UpdateSettings{Settings: *message.Settings}, nil
	case MsgSetFocusTab:
		return SetFocusTab{URL: message.URL}, nil
	case MsgClearFocusTab:
		return ClearFocusTab{}, nil
	case MsgResetAllData:
		return ResetAllData{}, nil
	case MsgGetSessionHistory:
		return GetSessionHistory{Limit: message.Limit}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", message.Type)
	}
}

func encodeResponse(response Response) wireResponse {
	wire := wireResponse{
		Success:  response.Success,
		Error:    response.Error,
		Notified: response.Notified,
		Settings: response.Settings,
	}
	if response.Status != nil {
		wire.Status = encodeStatus(*response.Status)
	}
	for _, session := range response.Sessions {
		wire.Sessions = append(wire.Sessions, wireSession{
			ID:        session.ID,
			StartedAt: session.StartedAt.UnixMilli(),
			EndedAt:   session.EndedAt.UnixMilli(),
			WorkTime:  session.WorkTime.Milliseconds(),
			BreakType: string(session.BreakType),
		})
	}
	return wire
}

func encodeStatus(status breaktimer.Status) *wireStatus {
	return &wireStatus{
		State:               string(status.State),
		IsWorkTimerActive:   status.WorkTimerActive,
		IsOnBreak:           status.OnBreak,
		BreakType:           string(status.BreakType),
		CurrentWorkTime:     status.CurrentWorkTime.Milliseconds(),
		WorkTimeThreshold:   status.WorkTimeThreshold.Milliseconds(),
		IsThresholdExceeded: status.ThresholdExceeded,
		BreakRemaining:      status.BreakRemaining.Milliseconds(),
	}
}

func writeJSON(writer http.ResponseWriter, code int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(code)
	_ = json.NewEncoder(writer).Encode(payload)
}
