package diarization

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/apierror"
	"meeting-insights-go/internal/retry"
	"meeting-insights-go/internal/types"
	"meeting-insights-go/internal/upstream"
)

const (
	Service        = "bhashini-diarization"
	TaskDiarize    = "speaker-diarization"
	DefaultTimeout = 60 * time.Second
)

// SpeakerService is one entry of the diarization service catalog.
type SpeakerService struct {
	ServiceID   string `json:"serviceId" yaml:"service_id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

type Config struct {
	ComputeURL       string
	InferenceKey     string
	DefaultServiceID string
	Services         []SpeakerService
	Timeout          time.Duration
	Retry            retry.Policy
}

type Client struct {
	cfg Config
	up  *upstream.Client
	log *logrus.Entry
}

func New(cfg Config, log *logrus.Entry) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg: cfg,
		up:  upstream.NewClient(Service, cfg.Timeout),
		log: log.WithField("component", "diarization"),
	}
}

// Services returns the configured service catalog.
func (c *Client) Services() []SpeakerService {
	out := make([]SpeakerService, len(c.cfg.Services))
	copy(out, c.cfg.Services)
	return out
}

// ResolveServiceID returns id when it is in the catalog (or the catalog is
// empty), else the default service.
func (c *Client) ResolveServiceID(id string) string {
	if id == "" {
		return c.cfg.DefaultServiceID
	}
	if len(c.cfg.Services) == 0 {
		return id
	}
	for _, s := range c.cfg.Services {
		if s.ServiceID == id {
			return id
		}
	}
	return c.cfg.DefaultServiceID
}

// Diarize never fails: any upstream or parse problem yields a failed stage
// with no speakers.
func (c *Client) Diarize(ctx context.Context, audioBase64, serviceID string) types.Stage[[]types.SpeakerProfile] {
	none := []types.SpeakerProfile{}
	serviceID = c.ResolveServiceID(serviceID)
	log := c.log.WithField("service_id", serviceID)
	if c.cfg.ComputeURL == "" {
		return types.Failed(none, "diarization endpoint not configured")
	}

	payload := upstream.PipelineRequest{
		PipelineTasks: []upstream.PipelineTask{
			{TaskType: TaskDiarize, Config: upstream.TaskConfig{ServiceID: serviceID}},
		},
		InputData: upstream.AudioPayload(audioBase64),
	}

	var body []byte
	err := c.cfg.Retry.Do(ctx, func(attempt int) error {
		log.WithField("attempt", attempt+1).Info("sending diarization request")
		b, err := c.up.PostJSON(ctx, c.cfg.ComputeURL, map[string]string{"Authorization": c.cfg.InferenceKey}, payload)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, func(err error, wait time.Duration) {
		log.WithField("error", err.Error()).WithField("wait", wait.String()).Warn("diarization attempt failed, backing off")
	})
	if err != nil {
		log.WithField("error", err.Error()).Warn("diarization failed, continuing without speakers")
		return types.Failed(none, err.Error())
	}

	var resp upstream.PipelineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		perr := apierror.Wrap(apierror.KindInvalidResponse, Service, err)
		log.WithField("error", perr.Error()).Warn("diarization response unreadable")
		return types.Failed(none, perr.Error())
	}

	profiles := aggregator.Aggregate(SpeakerLabels(resp))
	log.WithField("speakers", len(profiles)).Info("diarization completed")
	return types.Completed(profiles)
}

// SpeakerLabels collects output[].speaker_labels[].{id: [segment...]} from
// every diarization stage. Shapes it does not recognise contribute nothing.
func SpeakerLabels(resp upstream.PipelineResponse) map[string][]types.SpeakerSegment {
	out := map[string][]types.SpeakerSegment{}
	for _, stage := range resp.PipelineResponse {
		if stage.TaskType != "" && stage.TaskType != TaskDiarize {
			continue
		}
		for _, output := range stage.Outputs() {
			var labels []json.RawMessage
			if json.Unmarshal(output["speaker_labels"], &labels) != nil {
				continue
			}
			for _, label := range labels {
				var bySpeaker map[string]json.RawMessage
				if json.Unmarshal(label, &bySpeaker) != nil {
					continue
				}
				for id, raw := range bySpeaker {
					var segs []json.RawMessage
					if json.Unmarshal(raw, &segs) != nil {
						continue
					}
					for _, s := range segs {
						if seg, ok := parseSegment(s); ok {
							out[id] = append(out[id], seg)
						}
					}
				}
			}
		}
	}
	return out
}

func parseSegment(raw json.RawMessage) (types.SpeakerSegment, bool) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return types.SpeakerSegment{}, false
	}
	start, hasStart := upstream.Number(fields["start_time"])
	end, hasEnd := upstream.Number(fields["end_time"])
	dur, hasDur := upstream.Number(fields["duration"])
	switch {
	case hasStart && hasDur:
		end = start + dur
	case hasStart && hasEnd:
		dur = end - start
	case hasDur:
		end = dur
	default:
		return types.SpeakerSegment{}, false
	}
	if dur < 0 {
		return types.SpeakerSegment{}, false
	}
	return types.SpeakerSegment{Start: start, End: end, Duration: dur}, true
}
