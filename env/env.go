package env

// Args holds the command line flags shared by the node commands.
type Args struct {
	ConfigFile string
	Verbose    bool
	Once       bool
	NoUpload   bool // read and log only, nothing is sent to ThingSpeak
}
