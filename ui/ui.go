package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"

	"github.com/Jon-Bright/estufa/command"
	"github.com/Jon-Bright/estufa/console"
	"github.com/Jon-Bright/estufa/logs"
	"github.com/Jon-Bright/estufa/plant"
	"github.com/gin-gonic/gin"
)

//go:embed resources/*.templ.html
var resources embed.FS

var (
	log     *logs.Loggers
	sender  *console.Sender
	monitor *console.Monitor
	catalog command.Catalog
)

type commandData struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Payload string `json:"payload"`
}

func commands() []commandData {
	var cds []commandData
	for _, e := range catalog {
		p, err := e.Payload.Marshal()
		if err != nil {
			log.Error.Printf("couldn't marshal command '%s': %v", e.Key, err)
			continue
		}
		cds = append(cds, commandData{e.Key, e.Name, string(p)})
	}
	return cds
}

func indexHandler(c *gin.Context) {
	vd := struct {
		Topic    string
		Commands []commandData
		Messages []*console.Message
	}{
		Topic:    sender.Topic(),
		Commands: commands(),
		Messages: monitor.History(),
	}
	c.HTML(http.StatusOK, "index.templ.html", vd)
}

func commandsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, commands())
}

func profilesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, plant.GetDB())
}

func messagesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, monitor.History())
}

func streamHandler(c *gin.Context) {
	msgChan := monitor.GetMessageChan()
	defer monitor.DropMessageChan(msgChan)
	c.Stream(func(w io.Writer) bool {
		select {
		case msg := <-msgChan:
			c.SSEvent("message", msg)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func commandHandler(c *gin.Context) {
	key, set := c.GetPostForm("key")
	if !set {
		log.Warn.Printf("command request with no key received")
		c.String(http.StatusBadRequest, "No key specified")
		return
	}
	e, ok := catalog.Lookup(key)
	if !ok {
		log.Warn.Printf("command request with unknown key '%s'", key)
		c.String(http.StatusBadRequest, "Command '%s' unknown", key)
		return
	}
	sent, err := sender.Send(*e)
	if err != nil {
		log.Warn.Printf("command '%s' failed: %v", e.Name, err)
		c.String(http.StatusInternalServerError, "Sending command failed")
		return
	}
	log.Info.Printf("Sent '%s' from web panel as %s", e.Name, sent.ID)
	c.JSON(http.StatusOK, sent)
}

func newRouter() *gin.Engine {
	gin.DefaultWriter = log.Info.Writer()
	gin.DefaultErrorWriter = log.Error.Writer()
	r := gin.Default()
	r.SetTrustedProxies(nil)
	r.SetHTMLTemplate(template.Must(template.ParseFS(resources, "resources/*.templ.html")))
	r.GET("/", indexHandler)
	r.GET("/commands.json", commandsHandler)
	r.GET("/messages.json", messagesHandler)
	r.GET("/profiles.json", profilesHandler)
	r.GET("/stream", streamHandler)
	r.POST("/command", commandHandler)
	return r
}

// Init starts the web panel on listen and returns the address it's
// actually listening on.
func Init(l *logs.Loggers, s *console.Sender, m *console.Monitor, cat command.Catalog, listen string) (string, error) {
	log = l
	sender = s
	monitor = m
	catalog = cat
	r := newRouter()
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return "", fmt.Errorf("web panel listen on '%s': %w", listen, err)
	}
	go func() {
		err := r.RunListener(ln)
		log.Error.Printf("gin RunListener() returned, error %v", err)
	}()
	return ln.Addr().String(), nil
}
