// Package providers wraps the language model backends used to generate
// responses and to judge them.
//
// API backends (openai, azure, rits, watsonx, anthropic, ollama, gemini) are
// built on CloudWeGo Eino chat models. The cli backend runs an external binary
// with the prompt on stdin or as its last argument and returns stdout.
package providers
