package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	gramapi "gramevo/pkg/gramevo"
)

func loadRunRequestFromConfig(path string) (gramapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gramapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return gramapi.RunRequest{}, err
	}

	var req gramapi.RunRequest
	if v, ok := asString(raw["grammar_text"]); ok {
		req.GrammarText = v
	}
	if v, ok := asString(raw["grammar_file"]); ok {
		text, err := os.ReadFile(v)
		if err != nil {
			return gramapi.RunRequest{}, fmt.Errorf("read grammar file: %w", err)
		}
		req.GrammarText = string(text)
	}
	if v, ok := asString(raw["mode"]); ok {
		req.Mode = v
	}
	if v, ok := asFloat64(raw["target_score"]); ok {
		req.TargetScore = v
	}
	if v, ok := asBool(raw["stop_on_target"]); ok {
		req.StopOnTarget = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asFloat64(raw["max_fitness_rate"]); ok {
		req.MaxFitnessRate = v
	}
	if v, ok := asFloat64(raw["mutation_rate"]); ok {
		req.MutationRate = v
	}
	if v, ok := asInt(raw["children_per_crossover"]); ok {
		req.ChildrenPerCrossover = v
	}
	if v, ok := asInt(raw["start_gene_length"]); ok {
		req.StartGeneLength = v
	}
	if v, ok := asInt(raw["max_gene_length"]); ok {
		req.MaxGeneLength = v
	}
	if v, ok := asInt(raw["max_program_length"]); ok {
		req.MaxProgramLength = v
	}
	if v, ok := asFloat64(raw["fitness_fail"]); ok {
		req.FitnessFail = v
	}
	if v, ok := asInt(raw["build_timeout_ms"]); ok {
		req.BuildTimeout = time.Duration(v) * time.Millisecond
	}
	if v, ok := asInt(raw["execute_timeout_ms"]); ok {
		req.ExecuteTimeout = time.Duration(v) * time.Millisecond
	}

	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (gramapi.RunRequest, error) {
	if configPath == "" {
		return gramapi.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return gramapi.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func overrideFromFlags(req *gramapi.RunRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "mode":
			req.Mode = v.(string)
		case "target":
			req.TargetScore = v.(float64)
		case "stop-on-target":
			req.StopOnTarget = v.(bool)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "max-fitness-rate":
			req.MaxFitnessRate = v.(float64)
		case "mutation-rate":
			req.MutationRate = v.(float64)
		case "children":
			req.ChildrenPerCrossover = v.(int)
		case "start-gene":
			req.StartGeneLength = v.(int)
		case "max-gene":
			req.MaxGeneLength = v.(int)
		case "max-program":
			req.MaxProgramLength = v.(int)
		case "fitness-fail":
			req.FitnessFail = v.(float64)
		}
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
