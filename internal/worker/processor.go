package worker

import (
	"context"
	"fmt"
	"log"

	"rollbook/internal/attendance"
	"rollbook/internal/queue"
	"rollbook/internal/telemetry"
)

// Alert is a student whose attendance fell below the threshold after a session.
type Alert struct {
	StudentID string
	Metrics   attendance.Metrics
}

// Processor refreshes cached metrics for the students of each recorded
// session and flags those under the low attendance threshold.
type Processor struct {
	att       *attendance.Service
	threshold float64
}

// NewProcessor creates a processor. threshold is a percentage.
func NewProcessor(att *attendance.Service, threshold float64) *Processor {
	return &Processor{att: att, threshold: threshold}
}

// Handle processes one message. Messages of other types are ignored.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) ([]Alert, error) {
	if msg.Type != queue.TypeSessionRecorded {
		return nil, nil
	}
	sessionID := string(msg.Body)
	studentIDs, err := p.att.SessionStudents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s students: %w", sessionID, err)
	}

	var alerts []Alert
	for _, id := range studentIDs {
		m, err := p.att.RefreshMetrics(ctx, id)
		if err != nil {
			return alerts, fmt.Errorf("refresh metrics %s: %w", id, err)
		}
		if m.Total > 0 && m.OverallPercentage < p.threshold {
			telemetry.LowAttendanceAlerts.Inc()
			alerts = append(alerts, Alert{StudentID: id, Metrics: m})
		}
	}
	return alerts, nil
}

// Run consumes q until ctx is cancelled or the queue closes.
func (p *Processor) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		alerts, err := p.Handle(ctx, msg)
		if err != nil {
			log.Printf("processing %s %s failed: %v", msg.Type, msg.Body, err)
			continue
		}
		for _, a := range alerts {
			log.Printf("low attendance: student %s at %.2f%% (%d/%d attended)",
				a.StudentID, a.Metrics.OverallPercentage, a.Metrics.Present+a.Metrics.Late, a.Metrics.Total)
		}
	}
	log.Println("worker stopped")
	return nil
}
