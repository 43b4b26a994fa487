package envutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestExpandYAMLRetypesPlainScalars(t *testing.T) {
	t.Setenv("NHLAGENT_TEST_STEPS", "7")
	t.Setenv("NHLAGENT_TEST_MODEL", "gpt-4o-mini")

	out, missing, err := ExpandYAML([]byte("agent:\n  maxSteps: ${NHLAGENT_TEST_STEPS}\n  label: \"${NHLAGENT_TEST_STEPS}\"\nprovider:\n  model: $NHLAGENT_TEST_MODEL\n  apiKey: ${NHLAGENT_TEST_UNSET}\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"NHLAGENT_TEST_UNSET"}, missing)

	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	require.Equal(t, 7, decoded["agent"]["maxSteps"])
	require.Equal(t, "7", decoded["agent"]["label"])
	require.Equal(t, "gpt-4o-mini", decoded["provider"]["model"])
}

func TestExpandYAMLRejectsInvalidDocument(t *testing.T) {
	_, _, err := ExpandYAML([]byte("a: [unterminated"))
	require.Error(t, err)
}

func TestExpandYAMLEmptyDocument(t *testing.T) {
	out, missing, err := ExpandYAML(nil)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Nil(t, missing)
}
