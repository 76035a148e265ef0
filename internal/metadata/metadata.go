package metadata

import (
	"time"

	"github.com/Corezcy/record-latency/internal/record"
)

// ChannelStat is one channel of the analyzed record.
type ChannelStat struct {
	Name        string `json:"name"`
	MessageType string `json:"message_type"`
	Messages    int64  `json:"messages"`
	FirstTime   int64  `json:"first_time"`
	LastTime    int64  `json:"last_time"`
}

// ChannelStats converts reader channel info into catalog rows.
func ChannelStats(infos []record.ChannelInfo) []ChannelStat {
	out := make([]ChannelStat, 0, len(infos))
	for _, c := range infos {
		out = append(out, ChannelStat{
			Name:        c.Name,
			MessageType: c.MessageType,
			Messages:    int64(c.Count()),
			FirstTime:   int64(c.FirstTime),
			LastTime:    int64(c.LastTime),
		})
	}
	return out
}

// NewRunRecord fills the identity and timing fields of a run record.
func NewRunRecord(runID, namespace, mode, input string, started time.Time) RunRecord {
	return RunRecord{
		RunID:      runID,
		Namespace:  namespace,
		Mode:       mode,
		Input:      input,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
	}
}
