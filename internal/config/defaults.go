package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "disk"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "./data/indices"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/kotaeru.db"
	}
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = "recursive"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Cache.MaxResidentIndexes == 0 {
		cfg.Cache.MaxResidentIndexes = 64
	}
	if cfg.Cache.EmbeddingCacheSize == 0 {
		cfg.Cache.EmbeddingCacheSize = 10000
	}
	if cfg.Search.TopKPerDocument == 0 {
		cfg.Search.TopKPerDocument = 3
	}
	if cfg.Search.MaxTotalResults == 0 {
		cfg.Search.MaxTotalResults = 10
	}
	if cfg.Search.MaxConcurrentSearches == 0 {
		cfg.Search.MaxConcurrentSearches = 4
	}
	if cfg.Search.QueryTimeoutSeconds == 0 {
		cfg.Search.QueryTimeoutSeconds = 30
	}
	if cfg.Embedding.DefaultProvider == "" {
		cfg.Embedding.DefaultProvider = "ollama"
	}
	if cfg.Embedding.OpenAI.Model == "" {
		cfg.Embedding.OpenAI.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Ollama.BaseURL == "" {
		cfg.Embedding.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Ollama.Model == "" {
		cfg.Embedding.Ollama.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Ollama.Dimensions == 0 {
		cfg.Embedding.Ollama.Dimensions = 768
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "ollama"
	}
	if cfg.LLM.OpenAI.Model == "" {
		cfg.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.LLM.OpenAI.Temperature == 0 {
		cfg.LLM.OpenAI.Temperature = 0.3
	}
	if cfg.LLM.OpenAI.MaxTokens == 0 {
		cfg.LLM.OpenAI.MaxTokens = 2000
	}
	if cfg.LLM.Ollama.BaseURL == "" {
		cfg.LLM.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Ollama.Model == "" {
		cfg.LLM.Ollama.Model = "llama3.2:3b"
	}
	if cfg.LLM.Ollama.Temperature == 0 {
		cfg.LLM.Ollama.Temperature = 0.3
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md"}
	}
	if cfg.Watch.SessionID == "" {
		cfg.Watch.SessionID = "watch"
	}
}
