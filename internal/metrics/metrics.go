package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type Registry struct {
	sessions       atomic.Int64
	audioFrames    atomic.Int64
	published      sync.Map
	dropped        sync.Map
	subscribers    sync.Map
	decisions      sync.Map
	externalErrors sync.Map
}

var Default = &Registry{}

func (r *Registry) IncEventPublished(bus, eventType string) {
	if r == nil {
		return
	}
	r.counter(&r.published, labelKey(bus, eventType)).Add(1)
}

func (r *Registry) IncEventDropped(bus, eventType string) {
	if r == nil {
		return
	}
	r.counter(&r.dropped, labelKey(bus, eventType)).Add(1)
}

func (r *Registry) SetEventSubscriberCounts(bus string, filtered, unfiltered int) {
	if r == nil {
		return
	}
	r.counter(&r.subscribers, labelKey(bus, "filtered")).Store(int64(filtered))
	r.counter(&r.subscribers, labelKey(bus, "unfiltered")).Store(int64(unfiltered))
}

// IncDecision counts arbitration and admission outcomes, e.g. ("voice", "grant").
func (r *Registry) IncDecision(component, outcome string) {
	if r == nil {
		return
	}
	r.counter(&r.decisions, labelKey(component, outcome)).Add(1)
}

// IncExternalError counts failed calls to the ACL store or notification sink.
func (r *Registry) IncExternalError(dependency, operation string) {
	if r == nil {
		return
	}
	r.counter(&r.externalErrors, labelKey(dependency, operation)).Add(1)
}

func (r *Registry) SetSessions(count int) {
	if r == nil {
		return
	}
	r.sessions.Store(int64(count))
}

func (r *Registry) IncAudioFrames(delivered int) {
	if r == nil || delivered <= 0 {
		return
	}
	r.audioFrames.Add(int64(delivered))
}

func (r *Registry) WritePrometheus(writer io.Writer) error {
	if r == nil {
		return nil
	}

	writeHelp(writer, "radiohub_sessions", "Connected console sessions")
	fmt.Fprintln(writer, "# TYPE radiohub_sessions gauge")
	fmt.Fprintf(writer, "radiohub_sessions %d\n", r.sessions.Load())

	writeHelp(writer, "radiohub_audio_frames_delivered_total", "Audio frames delivered to listeners")
	fmt.Fprintln(writer, "# TYPE radiohub_audio_frames_delivered_total counter")
	fmt.Fprintf(writer, "radiohub_audio_frames_delivered_total %d\n", r.audioFrames.Load())

	writeLabeled(writer, &r.published, "radiohub_events_published_total", "Events published per bus", "counter", "bus", "type")
	writeLabeled(writer, &r.dropped, "radiohub_events_dropped_total", "Events dropped per bus", "counter", "bus", "type")
	writeLabeled(writer, &r.subscribers, "radiohub_event_subscribers", "Event bus subscribers", "gauge", "bus", "kind")
	writeLabeled(writer, &r.decisions, "radiohub_decisions_total", "Arbitration and admission outcomes", "counter", "component", "outcome")
	writeLabeled(writer, &r.externalErrors, "radiohub_external_errors_total", "Failed external calls", "counter", "dependency", "operation")
	return nil
}

func (r *Registry) counter(values *sync.Map, key string) *atomic.Int64 {
	value, _ := values.LoadOrStore(key, &atomic.Int64{})
	return value.(*atomic.Int64)
}

const labelSeparator = "\x00"

func labelKey(first, second string) string {
	if strings.TrimSpace(first) == "" {
		first = "unknown"
	}
	if strings.TrimSpace(second) == "" {
		second = "unknown"
	}
	return first + labelSeparator + second
}

func writeLabeled(writer io.Writer, values *sync.Map, metric, help, kind, firstLabel, secondLabel string) {
	var keys []string
	values.Range(func(key, _ any) bool {
		if name, ok := key.(string); ok {
			keys = append(keys, name)
		}
		return true
	})
	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)

	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s %s\n", metric, kind)
	for _, key := range keys {
		parts := strings.SplitN(key, labelSeparator, 2)
		value, _ := values.Load(key)
		fmt.Fprintf(writer, "%s{%s=%s,%s=%s} %d\n", metric, firstLabel, formatLabel(parts[0]), secondLabel, formatLabel(parts[1]), value.(*atomic.Int64).Load())
	}
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
