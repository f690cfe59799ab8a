package models

// CatalogEntry describes a known downloadable model.
type CatalogEntry struct {
	ID       string
	Engine   string
	Name     string
	Filename string // file or directory created under the models root
	URL      string
	Archive  bool // ZIP archives are extracted; plain files are kept as-is
}

// Catalog lists every model install_model can resolve.
var Catalog = []CatalogEntry{
	{
		ID:       "vosk-en-us-small",
		Engine:   "vosk",
		Name:     "English (US) Small",
		Filename: "vosk-model-small-en-us-0.15",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-small-en-us-0.15.zip",
		Archive:  true,
	},
	{
		ID:       "vosk-en-us",
		Engine:   "vosk",
		Name:     "English (US)",
		Filename: "vosk-model-en-us-0.22",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-en-us-0.22.zip",
		Archive:  true,
	},
	{
		ID:       "vosk-zh",
		Engine:   "vosk",
		Name:     "Chinese",
		Filename: "vosk-model-cn-0.22",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-cn-0.22.zip",
		Archive:  true,
	},
	{
		ID:       "vosk-fr",
		Engine:   "vosk",
		Name:     "French",
		Filename: "vosk-model-fr-0.22",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-fr-0.22.zip",
		Archive:  true,
	},
	{
		ID:       "vosk-de",
		Engine:   "vosk",
		Name:     "German",
		Filename: "vosk-model-de-0.22",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-de-0.22.zip",
		Archive:  true,
	},
	{
		ID:       "vosk-es",
		Engine:   "vosk",
		Name:     "Spanish",
		Filename: "vosk-model-es-0.42",
		URL:      "https://alphacephei.com/vosk/models/vosk-model-es-0.42.zip",
		Archive:  true,
	},
	{
		ID:       "whisper-tiny",
		Engine:   "whispercpp",
		Name:     "Whisper Tiny",
		Filename: "ggml-tiny.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
	},
	{
		ID:       "whisper-base",
		Engine:   "whispercpp",
		Name:     "Whisper Base",
		Filename: "ggml-base.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
	},
	{
		ID:       "whisper-small",
		Engine:   "whispercpp",
		Name:     "Whisper Small",
		Filename: "ggml-small.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
	},
}

// Lookup resolves a catalog entry by ID.
func Lookup(id string) (CatalogEntry, bool) {
	for _, entry := range Catalog {
		if entry.ID == id {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

// IDs returns every known model identifier.
func IDs() []string {
	ids := make([]string, 0, len(Catalog))
	for _, entry := range Catalog {
		ids = append(ids, entry.ID)
	}
	return ids
}
