package tabgraph

import (
	"github.com/spf13/pflag"
)

const configKeyAnnotation = "tabgraph_config_key"

// bindKey marks flag name of fs as the override for config key. Bindings are
// applied only for the command being run, so two subcommands may map their
// own flags to the same key.
func bindKey(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err) // only fails for an undefined flag
	}
}

// bindFlags binds every annotated flag of fs into the app's viper instance.
func (a *app) bindFlags(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if len(keys) == 0 || err != nil {
			return
		}
		err = a.v.BindPFlag(keys[0], f)
	})
	return err
}
