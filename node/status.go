package node

import (
	"encoding/json"
	"net/http"

	"github.com/gr-butler/weathernode/data"
	logger "github.com/sirupsen/logrus"
)

// StatusHandler serves the node status as JSON.
func (n *Node) StatusHandler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")

	s := n.Data.Status()
	s.Battery = data.WindowOf(n.Data.GetBuffer("battery"))
	js, err := json.Marshal(s)
	if err != nil {
		logger.Errorf("JSON error [%v]", err)
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.Debugf("Web read: [%v]", string(js))
	_, _ = rw.Write(js) // not much we can do if this fails
}
