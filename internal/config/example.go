package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# clear configuration file
# Values can be overridden by CLEAR_* environment variables or CLI flags

# Input dataset (CSV)
data_path = "data/examples.csv"

# Run outputs are written to <output_dir>/<run_name>
output_dir = "results"
run_name = "default"

# Provider: openai, azure, rits, watsonx, anthropic, ollama, gemini or cli
provider = "openai"
eval_model_name = "gpt-4o"
# gen_model_name = "gpt-4o-mini"  # Defaults to eval_model_name

# Generate responses before judging them
perform_generation = false

# Judge against the reference column
is_reference_based = false

# Reuse intermediate CSVs from an earlier run with the same name
resume_enabled = true

# Use the multiple-choice evaluation prompt
use_enhanced_mcq_evaluation = false

# Limit the number of examples (0 = all)
max_examples_to_analyze = 0

# Maximum number of shortcomings to synthesize
max_shortcomings = 15

# Extra columns shown in the dashboard
# input_columns = ["question", "context"]

[columns]
id = "id"
model_input = "model_input"
response = "response"
reference = "reference"

[evaluation_criteria]
# correctness = "The response answers the question accurately."
# completeness = "The response covers every part of the question."

[parallel]
max_workers = 10
task_timeout_seconds = 300
error_prefix = "Error: "
inline_single_task = false

# Provider settings (merged per field across config layers)
[providers.openai]
api_key_env = "OPENAI_API_KEY"
# base_url = "https://api.openai.com/v1"
# temperature = 0.0

[providers.azure]
api_key_env = "AZURE_OPENAI_API_KEY"
api_version = "2024-08-01-preview"
# base_url = "https://<resource>.openai.azure.com"

[providers.ollama]
base_url = "http://localhost:11434"

# Any binary that reads a prompt and prints a response
[providers.cli]
binary = "llm"
args = ["-m", "gpt-4o"]
prompt_format = "stdin"

# Logging
log_dir = "~/.clear"
log_level = "info"
log_format = "text"
`
}
