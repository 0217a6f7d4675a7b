package dotenv

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	DevEnv  = "dev"
	TestEnv = "test"
	ProdEnv = "prod"

	// EnvName is the variable selecting which .env files get loaded.
	EnvName = "INSIGHTHUB_ENV"
)

// LoadDotEnvs loads the .env file following the convention: https://github.com/bkeepers/dotenv#what-other-env-files-can-i-use
// It only need to be called once in main function, other code can use env through os.Getenv('ENV_NAME') during runtime
func LoadDotEnvs() error {
	return loadDotEnvs("")
}

// LoadDotEnvsFrom is LoadDotEnvs rooted at a given directory, rootPath must
// end with a path separator.
func LoadDotEnvsFrom(rootPath string) error {
	return loadDotEnvs(rootPath)
}

func CurrentEnv() string {
	env := os.Getenv(EnvName)
	if env == "" {
		env = DevEnv
	}
	return env
}

func IsProd() bool {
	return CurrentEnv() == ProdEnv
}

func loadDotEnvs(rootPath string) error {
	env := CurrentEnv()

	// godotenv never overrides a variable that is already set, so files are
	// loaded from the highest priority to the lowest and missing files are fine.
	// .env.[runtime_env].local has highest priority, usually contains username and password and other sensitive information
	godotenv.Load(rootPath + ".env." + env + ".local")
	if env != TestEnv {
		godotenv.Load(rootPath + ".env.local")
	}
	// .env.[runtime_env] usually contains db connection information
	godotenv.Load(rootPath + ".env." + env)
	// .env usually contains shared variables(which might be overwritten by envs above)
	godotenv.Load(rootPath + ".env")
	return nil
}
