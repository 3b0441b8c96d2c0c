// Package integracontador é um cliente Go para o Integra Contador, o gateway
// do Serpro que expõe serviços fiscais da Receita Federal a escritórios de
// contabilidade autenticados por certificado digital (mTLS).
//
// Visão Geral:
// O módulo resolve um serviço do catálogo, monta o envelope de requisição,
// autentica via OAuth client_credentials (com o par access_token/jwt_token
// compartilhado entre chamadas concorrentes), envia pelo transporte mTLS e
// traduz a resposta em sucesso ou num erro classificado.
//
// Sub-Pacotes Principais:
//
// 1. envloader:
//   - Carregamento de configurações via tags "env", "envDefault" e "envRequired".
//
// 2. pkg/credentials:
//   - Certificado PEM ou PKCS#12 e client id/secret, inline, em arquivo,
//     S3, Secrets Manager ou SSM Parameter Store.
//
// 3. pkg/services:
//   - Catálogo fechado de serviços (CND, PGMEI, DCTFWEB, SICALC, ...) com
//     identificadores sobrescrevíveis por ambiente ou arquivo YAML.
//
// 4. pkg/auth e pkg/gateway:
//   - TokenManager com single-flight; envelope, transporte e parser de erros.
//
// 5. pkg/consulta:
//   - Fachada Consult com nova tentativa única em 401/403, cache, persistência
//     e eventos opcionais.
//
// 6. pkg/transport, pkg/graphql, cmd/server:
//   - API REST e GraphQL, servidor local ou AWS Lambda.
//
// 7. cmd/toolkit e cmd/emulator:
//   - CLI (servicos, validar, consultar) e gateway falso para desenvolvimento.
//
// Exemplo de uso:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	se, err := engine.NewServiceEngine(ctx, cfg, engine.Dependencies{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer se.Close()
//
//	res, err := se.Service.Consult(ctx, "PGMEI", "51.564.549/0001-40",
//	    domain.Options{Year: "2024", Month: "3"})
package integracontador
