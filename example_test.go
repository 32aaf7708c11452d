package tendril_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/session"
	"github.com/aretw0/tendril/pkg/workflows/outreach"
)

// ExampleService_Topology inspects a compiled workflow without opening a browser.
func ExampleService_Topology() {
	sessions := session.NewManager(session.ProviderFunc(func(ctx context.Context) (ports.Session, error) {
		return nil, errors.New("no browser in this example")
	}))
	svc, err := tendril.New(sessions)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	topo, ok := svc.Topology(outreach.Name)
	fmt.Println(ok, topo.Entry)
	// Output: true navigate_to_target
}

// ExampleService_SendMessage shows a refusal that happens before any session is leased.
func ExampleService_SendMessage() {
	sessions := session.NewManager(session.ProviderFunc(func(ctx context.Context) (ports.Session, error) {
		return nil, errors.New("no browser in this example")
	}))
	svc, err := tendril.New(sessions)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	_, err = svc.SendMessage(context.Background(), outreach.Request{Text: "hi"})
	fmt.Println(err)
	// Output: profile URL is required
}
