package discovery

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

type fakeServer struct {
	text     []string
	shutdown bool
}

func (f *fakeServer) SetText(text []string) { f.text = text }
func (f *fakeServer) Shutdown()             { f.shutdown = true }

type registration struct {
	instance, service, domain string
	port                      int
	text                      []string
	opts                      int
}

func newTestAdvertiser(t *testing.T, fail error) (*Advertiser, *[]registration, *[]*fakeServer) {
	t.Helper()
	var regs []registration
	var servers []*fakeServer
	a := NewAdvertiser(DefaultAdvertiserConfig())
	a.register = func(instance, service, domain string, port int, text []string, _ []net.Interface, opts ...zeroconf.ServerOption) (server, error) {
		if fail != nil {
			return nil, fail
		}
		regs = append(regs, registration{instance, service, domain, port, text, len(opts)})
		srv := &fakeServer{text: text}
		servers = append(servers, srv)
		return srv, nil
	}
	return a, &regs, &servers
}

func testInfo() *ServiceInfo {
	return &ServiceInfo{
		Instance: "Mycodo Outputs greenhouse",
		Port:     8080,
		Version:  "1.2.0",
		APIPath:  "/api/v1",
		Types:    []output.Type{output.TypePWM, output.TypeCommand},
	}
}

func TestTXTRoundTrip(t *testing.T) {
	txt := EncodeTXT(testInfo())
	assert.Equal(t, "command,pwm", txt[TXTKeyTypes], "types are sorted")

	strs := TXTRecordsToStrings(txt)
	assert.Equal(t, []string{"api=/api/v1", "types=command,pwm", "ver=1.2.0"}, strs)

	info, err := DecodeTXT(StringsToTXTRecords(strs))
	require.NoError(t, err)
	assert.Equal(t, "/api/v1", info.APIPath)
	assert.Equal(t, "1.2.0", info.Version)
	assert.Equal(t, []output.Type{output.TypeCommand, output.TypePWM}, info.Types)
}

func TestDecodeTXTMissingAPIPath(t *testing.T) {
	_, err := DecodeTXT(TXTRecordMap{TXTKeyVersion: "1"})
	assert.ErrorIs(t, err, ErrMissingRequired)
}

func TestStringsToTXTRecordsFlag(t *testing.T) {
	txt := StringsToTXTRecords([]string{"flag", "", "k=v=w"})
	assert.Equal(t, TXTRecordMap{"flag": "", "k": "v=w"}, txt)
}

func TestAdvertise(t *testing.T) {
	a, regs, _ := newTestAdvertiser(t, nil)

	require.NoError(t, a.Advertise(testInfo()))
	require.Len(t, *regs, 1)
	r := (*regs)[0]
	assert.Equal(t, "Mycodo Outputs greenhouse", r.instance)
	assert.Equal(t, ServiceType, r.service)
	assert.Equal(t, Domain, r.domain)
	assert.Equal(t, 8080, r.port)
	assert.Contains(t, r.text, "api=/api/v1")
	assert.Equal(t, 1, r.opts, "TTL option")
}

func TestAdvertiseReplacesRegistration(t *testing.T) {
	a, regs, servers := newTestAdvertiser(t, nil)

	require.NoError(t, a.Advertise(testInfo()))
	require.NoError(t, a.Advertise(testInfo()))
	assert.Len(t, *regs, 2)
	assert.True(t, (*servers)[0].shutdown)
	assert.False(t, (*servers)[1].shutdown)

	a.Stop()
	assert.True(t, (*servers)[1].shutdown)
	a.Stop()
}

func TestAdvertiseValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServiceInfo)
		want   error
	}{
		{"ZeroPort", func(i *ServiceInfo) { i.Port = 0 }, ErrInvalidPort},
		{"HighPort", func(i *ServiceInfo) { i.Port = 70000 }, ErrInvalidPort},
		{"NoInstance", func(i *ServiceInfo) { i.Instance = "" }, ErrMissingRequired},
		{"LongInstance", func(i *ServiceInfo) { i.Instance = strings.Repeat("x", 64) }, ErrInstanceNameTooLong},
		{"LargeTXT", func(i *ServiceInfo) { i.Version = strings.Repeat("v", MaxTXTRecordSize) }, ErrTXTTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, regs, _ := newTestAdvertiser(t, nil)
			info := testInfo()
			tt.mutate(info)
			assert.ErrorIs(t, a.Advertise(info), tt.want)
			assert.Empty(t, *regs)
		})
	}
}

func TestAdvertiseRegisterError(t *testing.T) {
	boom := errors.New("no multicast")
	a, _, _ := newTestAdvertiser(t, boom)
	assert.ErrorIs(t, a.Advertise(testInfo()), boom)
	assert.Error(t, a.Update(testInfo()), "nothing registered")
}

func TestUpdate(t *testing.T) {
	a, _, servers := newTestAdvertiser(t, nil)
	require.NoError(t, a.Advertise(testInfo()))

	info := testInfo()
	info.Types = []output.Type{output.TypeWired}
	require.NoError(t, a.Update(info))
	assert.Contains(t, (*servers)[0].text, "types=wired")
}

func TestGetInterfacesUnknown(t *testing.T) {
	a := NewAdvertiser(AdvertiserConfig{Interface: "does-not-exist0"})
	assert.Nil(t, a.getInterfaces())
	assert.Nil(t, NewAdvertiser(DefaultAdvertiserConfig()).getInterfaces())
}
