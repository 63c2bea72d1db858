package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Example is one evaluation case: a prompt and the reference answer the
// scraped output is judged against.
type Example struct {
	Question string `json:"question"`
	Expected string `json:"expected"`
}

// Dataset is an ordered collection of examples. Order is irrelevant to
// scoring. Created once at run start, read-only afterwards.
type Dataset struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Examples    []Example `json:"examples"`
}

// LoadDataset reads a dataset from a JSON file. The file holds a Dataset
// object; a missing name defaults to the file's base name. Every example
// must carry both a question and an expected answer, and an empty dataset
// is rejected, so a bad file fails the run before the browser launches.
func LoadDataset(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewScrapeError(ErrCodeConfig, "failed to read dataset file "+path, err)
	}

	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, NewScrapeError(ErrCodeConfig, "failed to parse dataset file "+path, err)
	}
	if len(ds.Examples) == 0 {
		return nil, NewScrapeError(ErrCodeConfig, "dataset file "+path+" contains no examples", nil)
	}
	for i, ex := range ds.Examples {
		if ex.Question == "" || ex.Expected == "" {
			return nil, NewScrapeError(ErrCodeConfig,
				fmt.Sprintf("dataset example %d is missing a question or expected answer", i), nil)
		}
	}
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &ds, nil
}

// SeedDataset returns the stock dataset of LangChain questions used when no
// external dataset is supplied.
func SeedDataset() *Dataset {
	return &Dataset{
		Name:        "Chat LangChain Responses",
		Description: "Scraped chat.langchain.com answers graded for correctness",
		Examples: []Example{
			{
				Question: "What is LangChain?",
				Expected: "LangChain is a framework for building applications with LLMs.",
			},
			{
				Question: "How do I create an agent in LangChain?",
				Expected: "You can create an agent using LangChain's agent creation tools.",
			},
			{
				Question: "What is LangGraph?",
				Expected: "LangGraph is a library for building stateful, multi-actor applications with LLMs.",
			},
			{
				Question: "How do I use tools with LangChain?",
				Expected: "You can use tools by binding them to your LLM using the bind_tools method.",
			},
			{
				Question: "What is the difference between LangChain and LangGraph?",
				Expected: "LangChain is a framework for building LLM applications, while LangGraph is specifically for building stateful, multi-actor applications.",
			},
		},
	}
}
