package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/leafdoctor/internal/diagnosis"
)

// profileFile is the YAML shape of a model profile:
//
//	labels:
//	  - name: Early Blight
//	    demo_weight: 0.7
//	    recommendation:
//	      icon: fa-exclamation-triangle
//	      ...
type profileFile struct {
	Labels []profileLabel `yaml:"labels"`
}

type profileLabel struct {
	Name           string                   `yaml:"name"`
	DemoWeight     *float64                 `yaml:"demo_weight"`
	Recommendation diagnosis.Recommendation `yaml:"recommendation"`
}

// LoadProfile reads a model profile from path. An empty path returns the
// default tomato leaf profile.
func LoadProfile(path string) (diagnosis.Profile, error) {
	if path == "" {
		return diagnosis.DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return diagnosis.Profile{}, fmt.Errorf("config: read profile %s: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a YAML model profile. Label order in the file is the
// order of the model's output scores.
func ParseProfile(data []byte) (diagnosis.Profile, error) {
	var file profileFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return diagnosis.Profile{}, fmt.Errorf("config: parse profile: %w", err)
	}
	if len(file.Labels) == 0 {
		return diagnosis.Profile{}, fmt.Errorf("config: profile has no labels")
	}

	p := diagnosis.Profile{
		Labels:          make([]diagnosis.Label, 0, len(file.Labels)),
		DemoWeights:     make([]float64, 0, len(file.Labels)),
		Recommendations: make(map[diagnosis.Label]diagnosis.Recommendation, len(file.Labels)),
	}
	for i, l := range file.Labels {
		if l.DemoWeight == nil {
			return diagnosis.Profile{}, fmt.Errorf("config: label %d (%q) has no demo_weight", i, l.Name)
		}
		label := diagnosis.Label(l.Name)
		p.Labels = append(p.Labels, label)
		p.DemoWeights = append(p.DemoWeights, *l.DemoWeight)
		p.Recommendations[label] = l.Recommendation
	}
	return p, nil
}

// MarshalProfile encodes p in the format ParseProfile reads.
func MarshalProfile(p diagnosis.Profile) ([]byte, error) {
	if len(p.DemoWeights) != len(p.Labels) {
		return nil, fmt.Errorf("config: %d demo weights for %d labels", len(p.DemoWeights), len(p.Labels))
	}
	file := profileFile{Labels: make([]profileLabel, 0, len(p.Labels))}
	for i, label := range p.Labels {
		weight := p.DemoWeights[i]
		file.Labels = append(file.Labels, profileLabel{
			Name:           string(label),
			DemoWeight:     &weight,
			Recommendation: p.Recommendations[label],
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return nil, fmt.Errorf("config: encode profile: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("config: encode profile: %w", err)
	}
	return buf.Bytes(), nil
}
