package storage

// Keys of the device partition. Everything the core writes starts with
// PartitionPrefix so a full reset is a single DeletePrefix.
const (
	PartitionPrefix = "aa_"

	KeySetupComplete  = "aa_setup_complete"
	KeyVerified       = "aa_verified"
	KeyLanguage       = "aa_language"
	KeyCurrentPersona = "aa_current_persona"
)

// Persona profile fields.
const (
	FieldName   = "name"
	FieldGender = "gender"
	FieldColor  = "color"
)

// PersonaKey returns the key of one profile field of a persona.
func PersonaKey(personaID, field string) string {
	return "aa_persona_" + personaID + "_" + field
}

// ChatKey returns the key holding a persona's serialized conversation log.
func ChatKey(personaID string) string {
	return "aa_chat_" + personaID
}
