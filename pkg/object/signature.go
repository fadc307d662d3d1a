package object

// CommitSigningPayload returns the canonical bytes covered by a commit
// signature: the serialized commit with the signature field cleared.
func CommitSigningPayload(c *CommitObj) []byte {
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}
