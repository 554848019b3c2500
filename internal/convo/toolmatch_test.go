package convo

import "testing"

func TestLooksLikeToolCommand_MatchesEmbeddedPhrase(t *testing.T) {
	if !looksLikeToolCommand("can you please run the tests for me", defaultToolCommandPatterns) {
		t.Fatal("expected a match for an embedded tool-command phrase")
	}
}

func TestLooksLikeToolCommand_NoMatchForUnrelatedQuestion(t *testing.T) {
	if looksLikeToolCommand("what does this function do", defaultToolCommandPatterns) {
		t.Fatal("expected no match for an unrelated question")
	}
}

func TestLooksLikeToolCommand_EmptyQuestionNeverMatches(t *testing.T) {
	if looksLikeToolCommand("", defaultToolCommandPatterns) {
		t.Fatal("empty question must never match")
	}
}
