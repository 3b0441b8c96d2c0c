// Copyright 2025 Raywall Malheiros de Souza
// Licensed under the Mozilla Public License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Package emulator é um gateway Integra Contador falso para desenvolvimento
// local e testes de integração, configurado por um arquivo YAML.
//
// Ele atende o endpoint de autenticação (client_credentials com Basic auth,
// devolvendo access_token e jwt_token) e os três endpoints de serviço
// (Consultar, Emitir, Solicitar). Cada requisição de serviço precisa trazer
// um par de tokens emitido pelo próprio emulador; caso contrário a resposta
// é 401, o que permite exercitar a re-autenticação do cliente.
//
// A resposta é escolhida pelo idServico do envelope e, opcionalmente, pelo
// CNPJ do contribuinte. Sem rota correspondente, devolve 404 com o envelope
// de erro "mensagens".
//
// Com certificado e CA de clientes configurados, o emulador exige mTLS como
// o gateway real.
//
// Exemplo de Configuração (emulator.yaml):
//
//	porta: 9443
//	client_id: meu-id
//	client_secret: meu-segredo
//	certificado: certs/servidor.pem
//	chave: certs/servidor-key.pem
//	ca_clientes: certs/clientes-ca.pem
//	rotas:
//	  - idServico: RELATORIOSITFIS92
//	    resposta:
//	      status: 200
//	      corpo: { situacao: regular }
//	  - idServico: DADOSCCMEI122
//	    cnpj: "51564549000140"
//	    resposta:
//	      status: 400
//	      corpo:
//	        mensagens:
//	          - { codigo: "Erro-CCMEI-001", texto: "CNPJ não é MEI" }
//
// Exemplo de Inicialização Programática (Go):
//
//	cfg, err := emulator.LoadFile("emulator.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := emulator.New(cfg).Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package emulator
