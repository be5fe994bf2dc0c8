package breaktimer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"focusguard/internal/storage"
)

// Store keys. Values are JSON records; timestamps are unix
// milliseconds, durations are milliseconds. A zero timestamp means
// "unset".
const (
	TimerStateKey  = "breakTimerState"
	SessionDataKey = "workSessionData"
)

type timerStateRecord struct {
	IsWorkTimerActive bool   `json:"isWorkTimerActive"`
	IsOnBreak         bool   `json:"isOnBreak"`
	BreakType         string `json:"breakType"`
	LastActivityTime  int64  `json:"lastActivityTime"`
	WorkTimeThreshold int64  `json:"workTimeThreshold"`
}

type sessionDataRecord struct {
	WorkStartTime  int64 `json:"workStartTime"`
	TotalWorkTime  int64 `json:"totalWorkTime"`
	BreakStartTime int64 `json:"breakStartTime"`
	BreakDuration  int64 `json:"breakDuration"`
}

func millisOrZero(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UnixMilli()
}

func timeFromMillis(millis int64) time.Time {
	if millis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// persistLocked writes the full timer state through to the store. A
// failed write keeps the in-memory state authoritative; the next
// successful write flushes it. Callers hold the lock.
func (timer *Timer) persistLocked(ctx context.Context) error {
	state := timerStateRecord{
		IsWorkTimerActive: timer.workActive,
		IsOnBreak:         timer.onBreak,
		BreakType:         string(timer.breakType),
		LastActivityTime:  millisOrZero(timer.lastActivity),
		WorkTimeThreshold: timer.workThreshold.Milliseconds(),
	}
	session := sessionDataRecord{
		WorkStartTime:  millisOrZero(timer.workStart),
		TotalWorkTime:  timer.totalWork.Milliseconds(),
		BreakStartTime: millisOrZero(timer.breakStart),
		BreakDuration:  timer.breakDuration.Milliseconds(),
	}

	stateRaw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	sessionRaw, err := json.Marshal(session)
	if err != nil {
		return err
	}

	if err := timer.store.SetMultiple(ctx, map[string][]byte{
		TimerStateKey:  stateRaw,
		SessionDataKey: sessionRaw,
	}); err != nil {
		timer.log.Warn("timer state persist failed, keeping in-memory state",
			zap.Error(err))
		return err
	}
	return nil
}

// loadRecords reads the persisted records. Missing keys come back as
// nil pointers; a missing timer state record means no prior session.
func (timer *Timer) loadRecords(ctx context.Context) (*timerStateRecord, *sessionDataRecord, error) {
	values, err := timer.store.GetMultiple(ctx, []string{TimerStateKey, SessionDataKey})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, err
	}

	var (
		state   *timerStateRecord
		session *sessionDataRecord
	)
	if raw, ok := values[TimerStateKey]; ok {
		var record timerStateRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			timer.log.Warn("discarding unreadable timer state record", zap.Error(err))
		} else {
			state = &record
		}
	}
	if raw, ok := values[SessionDataKey]; ok {
		var record sessionDataRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			timer.log.Warn("discarding unreadable session data record", zap.Error(err))
		} else {
			session = &record
		}
	}
	return state, session, nil
}
