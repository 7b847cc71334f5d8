package registry

import "strings"

// The canonical tables below are the embedded fallback used whenever
// no filesystem override directory is configured (or an entry is
// missing from it). Addresses are matched case-insensitively.

var delegateCallWhitelist = map[string]string{
	"0x40a2accbd92bca938b02010e17a5b8929b49130d": "MultiSendCallOnly v1.3.0 (canonical)",
	"0xa1dabef33b3b82c7814b6d82a79e50f4ac44102b": "MultiSendCallOnly v1.3.0 (eip155)",
	"0xf220d3b4dfb23c4ade8c88e526c1353abacbc38f": "MultiSendCallOnly v1.3.0 (zksync)",
	"0x9641d764fc13c8b624c04430c7356c1c7c8102e2": "MultiSendCallOnly v1.4.1 (canonical)",
	"0x0408ef011960d02349d50286d20531229bcef773": "MultiSendCallOnly v1.4.1 (zksync)",
	"0x526643f69b81b008f46d95cd5ced5ec0edffdac6": "SafeMigration v1.4.1 (canonical)",
	"0x817756c6c555a94bcee39eb5a102abc1678b09a7": "SafeMigration v1.4.1 (zksync)",
	"0xa65387f16b013cf2af4605ad8aa5ec25a2cba3a2": "SignMessageLib v1.3.0 (canonical)",
	"0x98ffbbf51bb33a056b08ddf711f289936aaff717": "SignMessageLib v1.3.0 (eip155)",
	"0x357147caf9c0cca67dfa0cf5369318d8193c8407": "SignMessageLib v1.3.0 (zksync)",
	"0xd53cd0ab83d845ac265be939c57f53ad838012c9": "SignMessageLib v1.4.1 (canonical)",
	"0xaca1ec0a1a575cdccf1dc3d5d296202eb6061888": "SignMessageLib v1.4.1 (zksync)",
}

var canonicalFactories = map[string]string{
	"0x76e2cfc1f5fa8f6a5b3fc4c8f4788f0116861f9b": "Safe: Proxy Factory 1.1.1",
	"0x50e55af101c777ba7a3d560a2aab3b64d6b2b6a5": "Safe: Proxy Factory 1.3.0+",
	"0xa6b71e26c5e0845f74c812102ca7114b6a896ab2": "Safe: Proxy Factory 1.3.0",
	"0x4e1dcf7ad4e460cfd30791ccc4f9c8a4f820ec67": "Safe: Proxy Factory 1.4.1",
	"0xc22834581ebc8527d974f8a1c97e1bea4ef910bc": "Safe: Proxy Factory 1.4.1+",
	"0x12302fe9c02ff50939baaaaf415fc226c078613c": "Safe: Proxy Factory 1.3.0 (L2)",
	"0x0000000000ffe8b47b3e2130213b802212439497": "Safe: Proxy Factory (Legacy)",
	"0x8942595a2dc5181df0465af0d7be08c8f23c93af": "Safe: Proxy Factory 1.1.1 (Legacy)",
}

var canonicalMastercopies = map[string]string{
	"0xd9db270c1b5e3bd161e8c8503c55ceabee709552": "Safe: Master Copy 1.3.0 (canonical)",
	"0x69f4d1788e39c87893c980c06edf4b7f686e2938": "Safe: Master Copy 1.3.0 (eip155/zksync)",
	"0xb00ce5cccdef57e539ddced01df43a13855d9910": "Safe: Master Copy 1.3.0 (zksync)",
	"0x3e5c63644e683549055b9be8653de26e0b4cd36e": "Safe: Master Copy 1.3.0 L2 (canonical)",
	"0xfb1bffc9d739b8d520daf37df666da4c687191ea": "Safe: Master Copy 1.3.0 L2 (eip155)",
	"0x1727c2c531cf966f902e5927b98490fdfb3b2b70": "Safe: Master Copy 1.3.0 L2 (zksync)",
	"0x41675c099f32341bf84bfc5382af534df5c7461a": "Safe: Master Copy 1.4.1 (canonical)",
	"0x29fcb43b46531bca003ddc8fcb67ffe91900c762": "Safe: Master Copy 1.4.1 L2 (canonical)",
	"0x6851d6fdfafd08c0295c392436245e5bc78b0185": "Safe: Master Copy 1.2.0",
	"0xae32496491b53841efb51829d6f886387708f99b": "Safe: Master Copy 1.1.1",
	"0xb6029ea3b2c51d09a50b53ca8012feeb05bda35a": "Safe: Master Copy 1.0.0",
	"0x34cfac646f301356faa8b21e94227e3583fe3f5f": "Safe: Master Copy 1.3.0+ (fallback)",
}

var canonicalInitializers = map[string]string{
	"0x0000000000000000000000000000000000000000": "No Custom Initialization",
}

var canonicalFallbackHandlers = map[string]string{
	"0xfd0732dc9e303f09fcef3a7388ad10a83459ec99": "Safe: Compatibility Fallback Handler 1.4.1",
	"0xf48f2b2d2a534e402487b3ee7c18c33aec0fe5e4": "Safe: Compatibility Fallback Handler 1.3.0 (canonical)",
	"0x017062a1de2fe6b99be3d9d37841fed19f573804": "Safe: Compatibility Fallback Handler 1.3.0 (eip155)",
	"0x2f870a80647bbc554f3a0ebd093f11b4d2a7492a": "Safe: Compatibility Fallback Handler 1.3.0 (zksync)",
	"0x1ac114c2099afaf5261731655dc6c306bfcd4dbd": "Safe: Fallback Handler 1.3.0 (deprecated)",
	"0x0000000000000000000000000000000000000000": "No Fallback Handler",
}

func isTrustedDelegateCallTarget(lowerAddr string) (string, bool) {
	label, ok := delegateCallWhitelist[lowerAddr]
	return label, ok
}

func isCanonicalFactory(lowerAddr string) (string, bool) {
	label, ok := canonicalFactories[lowerAddr]
	return label, ok
}

func isCanonicalMastercopy(lowerAddr string) (string, bool) {
	label, ok := canonicalMastercopies[lowerAddr]
	return label, ok
}

func isCanonicalInitializer(lowerAddr string) (string, bool) {
	label, ok := canonicalInitializers[lowerAddr]
	return label, ok
}

func isCanonicalFallbackHandler(lowerAddr string) (string, bool) {
	label, ok := canonicalFallbackHandlers[lowerAddr]
	return label, ok
}

// normalizeAddress lowercases an address for map lookup, the same
// case-insensitive convention Lookup applies. It is unexported and
// has no callers outside this package.
func normalizeAddress(addr string) string {
	return strings.ToLower(addr)
}
