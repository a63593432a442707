package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerKey_Hash_StableForSameInputs(t *testing.T) {
	a := WorkerKey{Mnemonic: "Javac", Fingerprint: "abc123"}
	b := WorkerKey{Mnemonic: "Javac", Fingerprint: "abc123"}
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestWorkerKey_Hash_DiffersOnMnemonic(t *testing.T) {
	a := WorkerKey{Mnemonic: "Javac", Fingerprint: "abc123"}
	b := WorkerKey{Mnemonic: "CppCompile", Fingerprint: "abc123"}
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestWorkerKey_Hash_DiffersOnFingerprint(t *testing.T) {
	a := WorkerKey{Mnemonic: "Javac", Fingerprint: "abc123"}
	b := WorkerKey{Mnemonic: "Javac", Fingerprint: "def456"}
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestWorkerKey_Hash_NoDelimiterCollision(t *testing.T) {
	a := WorkerKey{Mnemonic: "Ja", Fingerprint: "vac"}
	b := WorkerKey{Mnemonic: "Javac", Fingerprint: ""}
	assert.NotEqual(t, a.Hash(), b.Hash())
}
