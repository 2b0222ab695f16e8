package tools

import (
	"strings"
	"testing"

	"cardaudit/internal/snapshot"
)

const trainPy = `from xgboost import XGBClassifier
import pandas as pd
import joblib

def train_model(X, y):
    clf = XGBClassifier(n_estimators=100, max_depth=6)
    clf.fit(X, y)
    joblib.dump(clf, "models/pd_model.pkl")
    return clf
`

const evalNotebook = `{
  "cells": [
    {"cell_type": "code",
     "source": ["from sklearn.metrics import roc_auc_score\n", "auc = roc_auc_score(y_test, preds)\n", "print(f'AUC: {auc:.2f}')"],
     "outputs": [{"output_type": "stream", "text": ["AUC: 0.83\n"]}]},
    {"cell_type": "code",
     "source": ["model = joblib.load('models/pd_model.pkl')"],
     "outputs": []}
  ]
}`

func testBinding(t *testing.T) *Binding {
	t.Helper()
	snap := snapshot.FromFiles(map[string]string{
		"src/train.py":         trainPy,
		"notebooks/eval.ipynb": evalNotebook,
		"models/pd_model.pkl":  "\x80\x04fakepickle",
	})
	return NewBinding(snap)
}

func TestSearchText(t *testing.T) {
	b := testBinding(t)

	hits := b.SearchText("XGBClassifier", 0)
	if len(hits) < 2 {
		t.Fatalf("XGBClassifier hits = %d, want >= 2: %+v", len(hits), hits)
	}
	if hits[0].Source != "src/train.py" || hits[0].Line != 1 {
		t.Errorf("first hit = %+v", hits[0])
	}

	if got := b.SearchText("", 5); got != nil {
		t.Errorf("empty query should return nil, got %+v", got)
	}
}

func TestSearchTextRegex(t *testing.T) {
	b := testBinding(t)
	hits := b.SearchText(`n_estimators=\d+`, 0)
	if len(hits) != 1 {
		t.Fatalf("regex hits = %d, want 1: %+v", len(hits), hits)
	}
}

func TestSearchTextLimit(t *testing.T) {
	b := testBinding(t)
	hits := b.SearchText(".", 2)
	if len(hits) != 2 {
		t.Errorf("limited hits = %d, want 2", len(hits))
	}
}

func TestSearchImports(t *testing.T) {
	b := testBinding(t)

	hits := b.SearchImports("xgboost")
	if len(hits) != 1 {
		t.Fatalf("xgboost import hits = %d: %+v", len(hits), hits)
	}
	if hits[0].Kind != "import" || !strings.Contains(hits[0].Text, "XGBClassifier") {
		t.Errorf("unexpected hit: %+v", hits[0])
	}

	// Notebook imports count too.
	nb := b.SearchImports("sklearn")
	if len(nb) != 1 || nb[0].CellNumber != 1 {
		t.Errorf("sklearn notebook import: %+v", nb)
	}
}

func TestSearchFunctions(t *testing.T) {
	b := testBinding(t)
	hits := b.SearchFunctions("train")
	if len(hits) != 1 {
		t.Fatalf("train function hits = %d: %+v", len(hits), hits)
	}
	if hits[0].Kind != "function_definition" || !strings.HasPrefix(hits[0].Text, "train_model(") {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
}

func TestSemanticSearch(t *testing.T) {
	b := testBinding(t)
	hits := b.SemanticSearch("roc auc score evaluation", 5)
	if len(hits) == 0 {
		t.Fatal("no semantic hits")
	}
	for _, h := range hits {
		if h.Score <= 0 || h.Score > 1 {
			t.Errorf("score out of range: %+v", h)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("hits not ranked: %v then %v", hits[i-1].Score, hits[i].Score)
		}
	}
}

func TestSearchNotebookOutputs(t *testing.T) {
	b := testBinding(t)
	hits := b.SearchNotebookOutputs("0.83")
	if len(hits) != 1 {
		t.Fatalf("output hits = %d: %+v", len(hits), hits)
	}
	if hits[0].Kind != "notebook_output" || hits[0].CellNumber != 1 {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
}

func TestSearchNotebookCells(t *testing.T) {
	b := testBinding(t)
	hits := b.SearchNotebookCells("roc_auc_score")
	if len(hits) != 1 || hits[0].CellNumber != 1 {
		t.Fatalf("cell hits: %+v", hits)
	}
}

func TestFindArtifact(t *testing.T) {
	b := testBinding(t)

	byName := b.FindArtifact("pd_model")
	if len(byName) != 1 || byName[0].Kind != "artifact" {
		t.Fatalf("by name: %+v", byName)
	}
	byExt := b.FindArtifact(".pkl")
	if len(byExt) != 1 {
		t.Fatalf("by ext: %+v", byExt)
	}
	if got := b.FindArtifact("missing.h5"); len(got) != 0 {
		t.Errorf("expected no hits, got %+v", got)
	}
}

func TestCheckArtifactUsage(t *testing.T) {
	b := testBinding(t)
	hits := b.CheckArtifactUsage("pd_model.pkl")
	// joblib.dump in train.py and joblib.load in the notebook.
	if len(hits) != 2 {
		t.Fatalf("usage hits = %d: %+v", len(hits), hits)
	}
}

func TestSurfaceMatchesBinding(t *testing.T) {
	// Every advertised entry point must exist; PromptSurface must mention
	// each signature so the generator sees the real contract.
	prompt := PromptSurface()
	for _, d := range Surface() {
		if !strings.Contains(prompt, d.Signature) {
			t.Errorf("prompt surface missing %q", d.Signature)
		}
	}
	if len(Surface()) != 8 {
		t.Errorf("surface size = %d, want 8", len(Surface()))
	}
}
