// Package topic implements FlightVars topic-filter matching: a generic
// trie keyed on '/'-separated levels with MQTT-style wildcards ('+' for a
// single level, '#' for the remainder), reused here for bus dispatch
// across both the FSUIPC offset domain and any future variable domain.
package topic

import "strings"

// Match reports whether topic matches filter, honoring '+' (single level)
// and '#' (this level and all below, must be the last level of filter).
func Match(filter, topic string) bool {
	if topic == "" || filter == "" {
		return false
	}

	if strings.HasPrefix(topic, "$") && !strings.HasPrefix(filter, "$") {
		return false
	}

	return matchLevels(splitTopicLevels(filter), splitTopicLevels(topic))
}

func matchLevels(filterLevels, topicLevels []string) bool {
	for i, fl := range filterLevels {
		if fl == "#" {
			return true
		}

		if i >= len(topicLevels) {
			return false
		}

		if fl != "+" && fl != topicLevels[i] {
			return false
		}
	}

	return len(filterLevels) == len(topicLevels)
}
